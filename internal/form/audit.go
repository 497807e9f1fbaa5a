// internal/form/audit.go
package form

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Auditor inspects one form and reports which questions remain unanswered.
// The result is authoritative only for the DOM version it was taken against.
type Auditor interface {
	Audit(ctx context.Context, sess schemas.BrowserSession, formID string) (schemas.FormAuditResult, error)
}

// auditedControl is the raw row the in-page collector returns per control.
type auditedControl struct {
	ID       string   `json:"id"`
	Prompt   string   `json:"prompt"`
	Control  string   `json:"control"`
	Locator  string   `json:"locator"`
	Options  []string `json:"options"`
	Answered bool     `json:"answered"`
	Required bool     `json:"required"`
}

// auditScript enumerates the controls of the form matching sel: one row per
// question, with the best label text the DOM offers and whether the control
// already holds a value. Radio groups collapse into a single row keyed by
// name.
const auditScript = `
(() => {
	const form = document.querySelector(%q);
	if (!form) return JSON.stringify(null);
	const rows = [];
	const seenGroups = new Set();
	const labelFor = (el) => {
		if (el.id) {
			const lab = form.querySelector('label[for="' + CSS.escape(el.id) + '"]');
			if (lab) return lab.innerText.trim();
		}
		const wrap = el.closest('label');
		if (wrap) return wrap.innerText.trim();
		const aria = el.getAttribute('aria-label');
		if (aria) return aria.trim();
		const field = el.closest('.field, .form-group, fieldset, li, div');
		if (field) {
			const lab = field.querySelector('label, legend');
			if (lab) return lab.innerText.trim();
		}
		return el.getAttribute('placeholder') || el.name || '';
	};
	const locatorFor = (el) => {
		if (el.id) return '#' + CSS.escape(el.id);
		if (el.name) return el.tagName.toLowerCase() + '[name="' + el.name + '"]';
		return '';
	};
	for (const el of form.querySelectorAll('input, select, textarea')) {
		if (el.type === 'hidden' || el.type === 'submit' || el.type === 'button') continue;
		if (el.type === 'radio' || el.type === 'checkbox') {
			const key = el.name || el.id;
			if (seenGroups.has(key)) continue;
			seenGroups.add(key);
			const group = el.name ? form.querySelectorAll('input[name="' + el.name + '"]') : [el];
			rows.push({
				id: key,
				prompt: labelFor(el),
				control: el.type,
				locator: el.name ? 'input[name="' + el.name + '"]' : locatorFor(el),
				options: Array.from(group).map(g => g.value),
				answered: Array.from(group).some(g => g.checked),
				required: Array.from(group).some(g => g.required)
			});
			continue;
		}
		const row = {
			id: el.name || el.id || locatorFor(el),
			prompt: labelFor(el),
			control: el.tagName === 'SELECT' ? 'select' : (el.tagName === 'TEXTAREA' ? 'textarea' : el.type || 'input'),
			locator: locatorFor(el),
			options: [],
			answered: false,
			required: el.required
		};
		if (el.tagName === 'SELECT') {
			row.options = Array.from(el.options).filter(o => o.value !== '').map(o => o.text.trim());
			row.answered = el.selectedIndex > 0 || (el.value !== '' && el.options[el.selectedIndex] && el.options[el.selectedIndex].value !== '');
		} else if (el.type === 'file') {
			row.control = 'file';
			row.answered = el.files && el.files.length > 0;
		} else {
			row.answered = el.value.trim() !== '';
		}
		rows.push(row);
	}
	return JSON.stringify(rows);
})()
`

// genericAuditor works on any provider by walking the form's controls
// directly.
type genericAuditor struct {
	logger *zap.Logger
}

func NewGenericAuditor(logger *zap.Logger) Auditor {
	return &genericAuditor{logger: logger.Named("audit")}
}

func (a *genericAuditor) Audit(ctx context.Context, sess schemas.BrowserSession, formID string) (schemas.FormAuditResult, error) {
	return runAudit(ctx, sess, formID, auditScript, a.logger)
}

func runAudit(ctx context.Context, sess schemas.BrowserSession, formID, script string, logger *zap.Logger) (schemas.FormAuditResult, error) {
	version := sess.DOMVersion()

	var raw string
	if err := chromedp.Run(sess.Ctx(), chromedp.Evaluate(fmt.Sprintf(script, formID), &raw)); err != nil {
		return schemas.FormAuditResult{}, fmt.Errorf("form audit failed: %w", err)
	}

	var controls []auditedControl
	if err := json.UnmarshalFromString(raw, &controls); err != nil {
		return schemas.FormAuditResult{}, fmt.Errorf("failed to decode audit rows: %w", err)
	}
	if controls == nil {
		return schemas.FormAuditResult{}, fmt.Errorf("no form matches %q", formID)
	}

	result := schemas.FormAuditResult{FormID: formID, DOMVersion: version}
	for _, c := range controls {
		if !c.Required && c.Answered {
			result.Total++
			continue
		}
		if !c.Required && strings.TrimSpace(c.Prompt) == "" {
			// Unlabeled optional control, not a question.
			continue
		}
		result.Total++
		if c.Answered {
			continue
		}
		result.Unanswered++
		result.Unresolved = append(result.Unresolved, schemas.FormQuestion{
			ID:      c.ID,
			Prompt:  c.Prompt,
			Kind:    classifyPrompt(c.Prompt),
			Control: c.Control,
			Locator: c.Locator,
			Options: c.Options,
		})
	}

	logger.Debug("Form audited.",
		zap.String("form_id", formID),
		zap.Uint64("dom_version", version),
		zap.Int("total", result.Total),
		zap.Int("unanswered", result.Unanswered))
	return result, nil
}
