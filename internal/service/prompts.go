package service

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Strob0t/ReviewForge/internal/domain/revision"
)

//go:embed prompts/*.txt prompts/*.tmpl
var promptFS embed.FS

// inputTemplates renders the user input of each role.
var inputTemplates = template.Must(template.New("inputs").ParseFS(promptFS, "prompts/*.tmpl"))

// inputData feeds the role input templates.
type inputData struct {
	Document string
	Draft    string
	Critique string
}

// Prompts holds the instructions of each role and renders their inputs.
type Prompts struct {
	instructions map[revision.Role]string
}

// LoadPrompts returns the embedded role instructions, replacing any role
// whose <role>.txt exists in dir. An empty dir uses the embedded set only.
func LoadPrompts(dir string) (*Prompts, error) {
	p := &Prompts{instructions: make(map[revision.Role]string, len(revision.Roles))}
	for _, role := range revision.Roles {
		name := string(role) + ".txt"
		data, err := promptFS.ReadFile("prompts/" + name)
		if err != nil {
			return nil, fmt.Errorf("embedded instructions %s: %w", name, err)
		}
		if dir != "" {
			override, err := os.ReadFile(filepath.Join(dir, name)) //nolint:gosec // G304: operator-supplied prompt directory
			switch {
			case err == nil:
				data = override
			case !errors.Is(err, os.ErrNotExist):
				return nil, fmt.Errorf("read %s: %w", name, err)
			}
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			return nil, fmt.Errorf("instructions for role %s are empty", role)
		}
		p.instructions[role] = text
	}
	return p, nil
}

// Instructions returns the instructions of role.
func (p *Prompts) Instructions(role revision.Role) string {
	return p.instructions[role]
}

// DraftInput renders the draft role input.
func (p *Prompts) DraftInput(doc string) (string, error) {
	return render("draft_input.tmpl", inputData{Document: doc})
}

// CritiqueInput renders the critique role input.
func (p *Prompts) CritiqueInput(doc, draft string) (string, error) {
	return render("critique_input.tmpl", inputData{Document: doc, Draft: draft})
}

// ReviseInput renders the revise role input.
func (p *Prompts) ReviseInput(doc, draft, critique string) (string, error) {
	return render("revise_input.tmpl", inputData{Document: doc, Draft: draft, Critique: critique})
}

func render(name string, data inputData) (string, error) {
	var buf bytes.Buffer
	if err := inputTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("execute %s: %w", name, err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
