package engine

import "fmt"

// Prompt templates per summary language. The transcript text is embedded
// verbatim as the final segment of the prompt. Each template instructs the
// model to answer with the bare SkipSentinel when the video is outside the
// investment/economy scope, which the pipeline records as a deliberate skip.

const promptKo = `다음은 YouTube 동영상의 자막입니다. 이 내용을 한국어로 간결하게 요약해주세요. 주요 내용과 핵심 포인트를 3-5문장으로 정리해주세요. 투자/경제와 무관한 내용이라면 다른 설명 없이 NO_RESPONSE 만 출력하세요:

%s`

const promptEn = `This is a YouTube video transcript. Please summarize the main content and key points in 3-5 sentences. If the video is unrelated to investing or the economy, reply with exactly NO_RESPONSE and nothing else:

%s`

// BuildSummaryPrompt picks the instruction template for the requested
// language and appends the transcript verbatim.
func BuildSummaryPrompt(transcriptText, lang string) string {
	if lang == "ko" || lang == "" {
		return fmt.Sprintf(promptKo, transcriptText)
	}
	return fmt.Sprintf(promptEn, transcriptText)
}
