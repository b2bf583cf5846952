package prompts

import (
	"bytes"
	"embed"
	"text/template"
)

//go:embed templates/*
var templatesFS embed.FS

// LoadPrompt renders an embedded template with the given data.
func LoadPrompt(templatePath string, data interface{}) (string, error) {
	tmpl, err := template.ParseFS(templatesFS, templatePath)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", err
	}

	return buf.String(), nil
}

// AnswerPromptData feeds the policy-advisor answer templates.
type AnswerPromptData struct {
	Query   string
	Context string
}

// RenderAnswerPrompt returns the system and user prompts for answering a
// query from retrieved policy documents.
func RenderAnswerPrompt(data AnswerPromptData) (string, string, error) {
	system, err := LoadPrompt("templates/answer_system.md", nil)
	if err != nil {
		return "", "", err
	}

	user, err := LoadPrompt("templates/answer_user.md", data)
	if err != nil {
		return "", "", err
	}

	return system, user, nil
}
