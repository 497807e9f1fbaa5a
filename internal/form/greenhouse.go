// internal/form/greenhouse.go
package form

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// greenhouseAuditor specializes the audit for Greenhouse job boards, whose
// markup is stable enough to read labels and required markers directly from
// the field wrappers. Custom screening questions live in the same form as
// the basic fields, so one pass covers both.
type greenhouseAuditor struct {
	logger *zap.Logger
}

// greenhouseScript reads the application form's field wrappers. A trailing
// asterisk on the label marks the question required; it is stripped from
// the prompt.
const greenhouseScript = `
(() => {
	const form = document.querySelector(%q) || document.querySelector('#application_form, #application-form, form[action*="greenhouse"]');
	if (!form) return JSON.stringify(null);
	const rows = [];
	const seenGroups = new Set();
	for (const field of form.querySelectorAll('.field, .application--question, fieldset')) {
		const el = field.querySelector('input:not([type=hidden]):not([type=submit]), select, textarea');
		if (!el) continue;
		const lab = field.querySelector('label, legend');
		let prompt = lab ? lab.innerText.trim() : (el.getAttribute('aria-label') || el.name || '');
		const required = /\*\s*$/.test(prompt) || el.required || el.getAttribute('aria-required') === 'true';
		prompt = prompt.replace(/\s*\*\s*$/, '');
		if (el.type === 'radio' || el.type === 'checkbox') {
			const key = el.name || el.id;
			if (seenGroups.has(key)) continue;
			seenGroups.add(key);
			const group = field.querySelectorAll('input[name="' + el.name + '"]');
			rows.push({
				id: key,
				prompt: prompt,
				control: el.type,
				locator: 'input[name="' + el.name + '"]',
				options: Array.from(group).map(g => g.value),
				answered: Array.from(group).some(g => g.checked),
				required: required
			});
			continue;
		}
		const row = {
			id: el.name || el.id,
			prompt: prompt,
			control: el.tagName === 'SELECT' ? 'select' : (el.tagName === 'TEXTAREA' ? 'textarea' : el.type || 'input'),
			locator: el.id ? '#' + CSS.escape(el.id) : el.tagName.toLowerCase() + '[name="' + el.name + '"]',
			options: [],
			answered: false,
			required: required
		};
		if (el.tagName === 'SELECT') {
			row.options = Array.from(el.options).filter(o => o.value !== '').map(o => o.text.trim());
			row.answered = el.value !== '';
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

func (a *greenhouseAuditor) Audit(ctx context.Context, sess schemas.BrowserSession, formID string) (schemas.FormAuditResult, error) {
	return runAudit(ctx, sess, formID, greenhouseScript, a.logger)
}

// SelectAuditor picks the provider-specialized auditor for the page's URL,
// falling back to the generic control walk.
func SelectAuditor(pageURL string, logger *zap.Logger) Auditor {
	if u, err := url.Parse(pageURL); err == nil {
		host := strings.ToLower(u.Hostname())
		if host == "greenhouse.io" || strings.HasSuffix(host, ".greenhouse.io") {
			return &greenhouseAuditor{logger: logger.Named("audit_greenhouse")}
		}
	}
	return NewGenericAuditor(logger)
}
