package stage

import "fmt"

// Panel is the stage-wide debug text panel.
type Panel struct {
	visible bool
	limit   int
	lines   []string
}

func NewPanel(limit int) *Panel {
	if limit <= 0 {
		limit = 1
	}
	return &Panel{limit: limit}
}

func (p *Panel) Toggle()       { p.visible = !p.visible }
func (p *Panel) Visible() bool { return p.visible }

// Debug appends a line, dropping the oldest past the limit.
func (p *Panel) Debug(format string, args ...any) {
	p.lines = append(p.lines, "Debug: "+fmt.Sprintf(format, args...))
	if over := len(p.lines) - p.limit; over > 0 {
		p.lines = append(p.lines[:0], p.lines[over:]...)
	}
}

func (p *Panel) Lines() []string {
	return append([]string(nil), p.lines...)
}
