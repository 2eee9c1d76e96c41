package telegram

import "strings"

// Characters legacy Markdown treats as entity delimiters outside an entity.
var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"_", `\_`,
	"*", `\*`,
	"`", "\\`",
	"[", `\[`,
)

// EscapeMarkdown quotes a value for messages sent with telebot.ModeMarkdown,
// so names or payment links containing '_' or '*' do not break parsing.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
