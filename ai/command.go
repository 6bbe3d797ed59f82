package ai

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Actions the model is allowed to request.
const (
	ActionCreate = "create_task"
	ActionDelete = "delete_task"
)

// Command is a structured mutation recovered from a model reply. Date and
// Time are the raw strings as the model produced them; validation happens in
// the same parser the manual flows use.
type Command struct {
	Action   string
	Title    string
	Date     string
	Time     string
	Keywords string
}

// ExtractCommand tries to find one embedded JSON command in a free-text
// reply. The object may be preceded by prose or wrapped in fenced code
// markup. Anything that doesn't parse into a known command shape means
// "no command": the reply is ordinary conversational text and must be shown
// to the user unmodified.
func ExtractCommand(reply string) (Command, bool) {
	txt := strings.ReplaceAll(reply, "```json", "")
	txt = strings.ReplaceAll(txt, "```", "")

	start := strings.Index(txt, "{")
	end := strings.LastIndex(txt, "}")
	if start == -1 || end <= start {
		return Command{}, false
	}

	raw := txt[start : end+1]
	if !gjson.Valid(raw) {
		return Command{}, false
	}

	obj := gjson.Parse(raw)
	switch obj.Get("action").String() {
	case ActionCreate:
		return Command{
			Action: ActionCreate,
			Title:  strings.TrimSpace(obj.Get("title").String()),
			Date:   strings.TrimSpace(obj.Get("date").String()),
			Time:   strings.TrimSpace(obj.Get("time").String()),
		}, true

	case ActionDelete:
		return Command{
			Action:   ActionDelete,
			Keywords: strings.TrimSpace(obj.Get("keywords").String()),
		}, true
	}

	return Command{}, false
}
