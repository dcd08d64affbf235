package composer

import (
	"fmt"
	"strings"
	"text/template"
)

// Call scripts are fixed phraseology templates. Every reply opens with
// "<pilot>, <bot>" so the pilot knows the call is for them before the data
// starts.
var scriptTemplates = template.Must(template.New("scripts").Parse(`
{{- define "bogey_dope" -}}
{{.To}}, {{.From}}, bandit, braa {{.BearingDigits}}, {{.RangeNM}} miles, {{.Altitude}}, {{.Aspect}}{{if .Cardinal}} {{.Cardinal}}{{end}}, type {{.Type}}.
{{- end -}}

{{- define "clean" -}}
{{.To}}, {{.From}}, scope is clean.
{{- end -}}

{{- define "radio_check" -}}
{{.To}}, {{.From}}, five by five.
{{- end -}}

{{- define "no_track" -}}
{{.To}}, {{.From}}, stand by, I do not have you on scope.
{{- end -}}

{{- define "say_again" -}}
{{.To}}, {{.From}}, say again.
{{- end -}}

{{- define "wrong_coalition" -}}
{{.To}}, {{.From}}, you are not on my coalition, stay off this frequency.
{{- end -}}
`))

// scriptData is the rendering context for the phraseology templates.
type scriptData struct {
	To            string
	From          string
	BearingDigits string
	RangeNM       int
	Altitude      string
	Aspect        string
	Cardinal      string
	Type          string
}

func renderScript(name string, data scriptData) string {
	var sb strings.Builder
	if err := scriptTemplates.ExecuteTemplate(&sb, name, data); err != nil {
		// Templates are compile-time fixed; a render failure is a programming
		// error, but the pilot still deserves a reply.
		return fmt.Sprintf("%s, %s, stand by.", data.To, data.From)
	}
	return sb.String()
}

// spokenBearing renders a bearing as three digits spoken one at a time,
// e.g. 90 -> "0 9 0".
func spokenBearing(bearingDeg int) string {
	digits := fmt.Sprintf("%03d", bearingDeg%360)
	parts := make([]string, len(digits))
	for i, d := range digits {
		parts[i] = string(d)
	}
	return strings.Join(parts, " ")
}

// spokenAltitude renders altitude in the controller's thousands idiom.
func spokenAltitude(altitudeFt int) string {
	switch thousands := altitudeFt / 1000; {
	case thousands <= 0:
		return "on the deck"
	case thousands == 1:
		return "1 thousand"
	default:
		return fmt.Sprintf("%d thousand", thousands)
	}
}
