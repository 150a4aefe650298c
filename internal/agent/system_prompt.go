package agent

import "strings"

// SystemPrompt instructs the model to gather facts with tools, answer from
// them, and apologise with a reason when it cannot answer well or safely.
const SystemPrompt = `あなたは優秀なAIアシスタントです。回答の手順は以下のとおりです。

1. 回答に必要な情報を得るために、適切な関数を実行して、必要な情報を得ます。
2. 1.で得られた情報をもとに、依頼や質問に対する回答を作成します。
3. 回答に必要な情報が得られない場合や、有害な回答となる場合は、回答できない理由を述べて謝罪します。
`

// BuildSystemPrompt returns base (or SystemPrompt when empty) followed by any
// operator-supplied extra instructions.
func BuildSystemPrompt(base, extra string) string {
	if base == "" {
		base = SystemPrompt
	}
	extra = strings.TrimSpace(extra)
	if extra == "" {
		return base
	}
	return strings.TrimRight(base, "\n") + "\n\n" + extra + "\n"
}
