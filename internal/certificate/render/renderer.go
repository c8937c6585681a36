// Package render produces the downloadable certificate document as
// self-contained HTML suitable for printing or PDF conversion downstream.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"ecocert/internal/certificate/models"
)

const certificateTemplate = `<!DOCTYPE html>
<html lang="fr">
<head>
<meta charset="utf-8">
<title>Certificat DEEE {{.Number}}</title>
</head>
<body>
<main>
<h1>Certificat de Conformité DEEE</h1>
<p class="number">{{.Number}}</p>
<dl>
<dt>Type de traitement</dt><dd>{{.TreatmentType}}</dd>
<dt>Date d'émission</dt><dd>{{.IssueDate}}</dd>
<dt>Date d'expiration</dt><dd>{{.ExpiryDate}}</dd>
<dt>Statut</dt><dd>{{.Status}}</dd>
</dl>
</main>
</body>
</html>
`

// HTMLRenderer renders certificates from a parsed template held for the
// process lifetime.
type HTMLRenderer struct {
	tmpl *template.Template
	now  func() time.Time
}

func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{
		tmpl: template.Must(template.New("certificate").Parse(certificateTemplate)),
		now:  time.Now,
	}
}

func (r *HTMLRenderer) Render(cert *models.Certificate) ([]byte, error) {
	var buf bytes.Buffer
	err := r.tmpl.Execute(&buf, map[string]string{
		"Number":        cert.Number,
		"TreatmentType": cert.TreatmentType,
		"IssueDate":     cert.IssueDate.Format("02/01/2006"),
		"ExpiryDate":    cert.ExpiryDate.Format("02/01/2006"),
		"Status":        string(cert.Status(r.now())),
	})
	if err != nil {
		return nil, fmt.Errorf("render certificate %s: %w", cert.Number, err)
	}
	return buf.Bytes(), nil
}
