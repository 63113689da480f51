package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TemplateID 是模板目录返回的不透明标识，兼容字符串与数字两种 JSON 形式
type TemplateID string

func (id *TemplateID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TemplateID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("template id must be a string or number: %w", err)
	}
	*id = TemplateID(n.String())
	return nil
}

type Template struct {
	ID   TemplateID `json:"id"`
	Name string     `json:"name"`
	URL  string     `json:"url"`
}

// TemplatePhrase 是选择模板后写入提示词的前缀
func TemplatePhrase(name string) string {
	return fmt.Sprintf("Use the \"%s\" template with the following text: ", name)
}

// TemplateChoice 表示 NoTemplate | Selected(Template)。
// 零值即 NoTemplate，不依赖任何保留的模板名称。
type TemplateChoice struct {
	template *Template
}

func NoTemplate() TemplateChoice {
	return TemplateChoice{}
}

func Selected(t Template) TemplateChoice {
	return TemplateChoice{template: &t}
}

func (c TemplateChoice) IsSelected() bool {
	return c.template != nil
}

// Template 返回选中的模板；NoTemplate 时 ok 为 false
func (c TemplateChoice) Template() (Template, bool) {
	if c.template == nil {
		return Template{}, false
	}
	return *c.template, true
}

type templateChoiceJSON struct {
	Kind     string    `json:"kind"`
	Template *Template `json:"template,omitempty"`
}

const (
	choiceKindNone     = "none"
	choiceKindSelected = "selected"
)

func (c TemplateChoice) MarshalJSON() ([]byte, error) {
	if c.template == nil {
		return json.Marshal(templateChoiceJSON{Kind: choiceKindNone})
	}
	return json.Marshal(templateChoiceJSON{Kind: choiceKindSelected, Template: c.template})
}

func (c *TemplateChoice) UnmarshalJSON(data []byte) error {
	var raw templateChoiceJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch raw.Kind {
	case choiceKindNone, "":
		*c = NoTemplate()
	case choiceKindSelected:
		if raw.Template == nil {
			return fmt.Errorf("selected template choice without template")
		}
		*c = Selected(*raw.Template)
	default:
		return fmt.Errorf("unknown template choice kind %q", raw.Kind)
	}
	return nil
}
