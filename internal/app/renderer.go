// internal/app/renderer.go
package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"cobrancazap/internal/domain/billing"
	"cobrancazap/internal/domain/notification"

	"github.com/valyala/fasttemplate"
)

// Default message bodies, keyed by rule kind. A rule without its own
// TemplateID renders the template registered under its kind.
var defaultTemplates = map[string]string{
	string(notification.KindDueToday): "Olá {{nome}}! 👋\n\n" +
		"Sua fatura no valor de *R$ {{valor}}* vence *hoje* ({{vencimento}}).\n\n" +
		"📱 Pague agora pelo link:\n{{link}}\n\n" +
		"Evite juros e multas pagando em dia!\n\n{{empresa}}",
	string(notification.KindPreDueReminder): "Olá {{nome}}! 😊\n\n" +
		"Lembramos que sua fatura no valor de *R$ {{valor}}* vence em *{{vencimento}}*.\n\n" +
		"💳 Acesse o link para pagar:\n{{link}}\n\n" +
		"Agradecemos a preferência!\n\n{{empresa}}",
	string(notification.KindOverdue): "Olá {{nome}},\n\n" +
		"Identificamos que sua fatura *#{{numero_cobranca}}* no valor de *R$ {{valor}}* está em atraso há *{{dias_atraso}} dias*.\n\n" +
		"⚠️ Regularize agora:\n{{link}}\n\n" +
		"Evite restrições no seu nome.\n\n{{empresa}}",
	string(notification.KindPaymentThanks): "Olá {{nome}}! 🎉\n\n" +
		"Recebemos seu pagamento de *R$ {{valor}}* referente à fatura *#{{numero_cobranca}}*.\n\n" +
		"✅ Pagamento confirmado com sucesso!\n\n" +
		"Obrigado pela confiança.\n\n{{empresa}}",
}

// TemplateRenderer substitutes {{placeholder}} tags with charge and customer fields.
type TemplateRenderer struct {
	customers billing.CustomerRepository
	company   string
	escape    func(string) string

	mu        sync.RWMutex
	templates map[string]*fasttemplate.Template
}

func NewTemplateRenderer(customers billing.CustomerRepository, company string) *TemplateRenderer {
	r := &TemplateRenderer{
		customers: customers,
		company:   company,
		escape:    func(v string) string { return v },
		templates: make(map[string]*fasttemplate.Template),
	}
	for id, body := range defaultTemplates {
		// Built-in templates are known to parse.
		r.templates[id] = fasttemplate.New(body, "{{", "}}")
	}
	return r
}

// SetTemplate registers or replaces a template body.
func (r *TemplateRenderer) SetTemplate(id, body string) error {
	tpl, err := fasttemplate.NewTemplate(body, "{{", "}}")
	if err != nil {
		return fmt.Errorf("invalid template %s: %w", id, err)
	}
	r.mu.Lock()
	r.templates[id] = tpl
	r.mu.Unlock()
	return nil
}

// EscapeValues sets how substituted values are quoted for the transport's
// markup. Template bodies are never escaped.
func (r *TemplateRenderer) EscapeValues(fn func(string) string) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.escape = fn
	r.mu.Unlock()
}

// TemplateIDFor resolves the template a rule renders with.
func TemplateIDFor(rule notification.Rule) string {
	if rule.TemplateID != "" {
		return rule.TemplateID
	}
	return string(rule.Kind)
}

// Render fills the template for charge as of now, the run's evaluation time.
func (r *TemplateRenderer) Render(ctx context.Context, templateID string, charge billing.Charge, now time.Time) (string, error) {
	r.mu.RLock()
	tpl, ok := r.templates[templateID]
	escape := r.escape
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("template %q not found", templateID)
	}

	name := ""
	customer, err := r.customers.GetByID(ctx, charge.CustomerID)
	if err != nil {
		return "", fmt.Errorf("failed to load customer %s: %w", charge.CustomerID, err)
	}
	if customer != nil {
		name = customer.Name
	}

	vars := map[string]interface{}{
		"nome":            escape(name),
		"valor":           escape(FormatBRL(charge.AmountCents)),
		"vencimento":      escape(charge.DueDate.Format("02/01/2006")),
		"link":            escape(charge.PaymentLink),
		"numero_cobranca": escape(charge.ID),
		"dias_atraso":     strconv.Itoa(charge.DaysOverdue(now)),
		"empresa":         escape(r.company),
	}
	// Unknown tags are left as written so template typos stay visible.
	return tpl.ExecuteStringStd(vars), nil
}

// FormatBRL formats cents as a Brazilian real amount without the symbol, e.g. 1.234,56.
func FormatBRL(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, ch := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(ch)
	}
	fmt.Fprintf(&b, ",%02d", cents%100)
	return b.String()
}
