package knox

import (
	"fmt"
	"strings"
)

// buildPrompt assembles the generation prompt from masked material only.
// Instructions are in Swedish to match the report language; the JSON
// schema block tells the model the exact shape ParseContent expects.
func buildPrompt(policy Policy, templateID string, docs []InputDoc) string {
	var modeInstruction string
	if policy.Mode == ModeInternal {
		modeInstruction = "Intern redaktionell brief (kan innehålla mer detaljer, men inga personuppgifter)."
	} else {
		modeInstruction = fmt.Sprintf(
			"Extern redaktionell brief. Regler: "+
				"INTE exakta datum/klockslag (använd 'i början av månaden', 'under veckan', etc), "+
				"INTE långa citat från källan (>%d ord i följd), "+
				"INTE personuppgifter eller identifierande detaljer. "+
				"Skriv som en erfaren redaktör: konkret, journalistiskt.",
			policy.QuoteLimitWords)
	}

	var antiQuote string
	if policy.Mode == ModeExternal {
		antiQuote = fmt.Sprintf("\nANTI-CITAT (KRITISKT):\n"+
			"- Du får INTE kopiera meningar eller fraser från underlaget.\n"+
			"- Du får inte återge %d+ ord i följd som förekommer i input.\n"+
			"- Använd inga citattecken och inga blockcitat.\n"+
			"- Parafrasera alltid och håll formuleringar generiska.\n",
			policy.QuoteLimitWords+1)
	}

	var material strings.Builder
	for _, d := range docs {
		fmt.Fprintf(&material, "[Dokument %d]\n%s\n\n", d.ID, d.MaskedText)
	}

	return fmt.Sprintf(`Du är en senior grävredaktör som skapar en strukturerad brief från ett journalistiskt projekt.

Policy: %s
Template: %s
Språk: Svenska
%s
Dokument:
%s
Skapa en rapport enligt följande JSON-struktur (svara ENDAST med JSON, ingen annan text):

{
  "template_id": "%s",
  "language": "sv",
  "title": "Titel på rapporten",
  "executive_summary": "Kort sammanfattning (2-3 meningar)",
  "themes": [
    {"name": "Tema (t.ex. 'Påstående', 'Konsekvens', 'Kontext')", "bullets": [
      "Fakta: ...",
      "Vinkel: ...",
      "Verifiera: ..."
    ]}
  ],
  "timeline_high_level": ["Relativ tid + händelse (ingen exakt datum/tid)"],
  "risks": [
    {"risk": "Publiceringsrisk (juridik/etik/fakta)", "mitigation": "Hur vi minimerar risken"}
  ],
  "open_questions": ["Vilket centralt påstående saknar vi primärkälla för?"],
  "next_steps": ["Exakt 3 steg: vem/roll + vad + varför (utan PII)"],
  "confidence": "low|medium|high"
}

JSON:`, modeInstruction, templateID, antiQuote, material.String(), templateID)
}

// retryReminder is appended on the second generation attempt.
const retryReminder = "\n\nVIKTIGT: Du MÅSTE svara med VALID JSON. " +
	"Inga kommentarer, inga trailing commas, inga radbrytningar i strängar. " +
	"Om du är osäker: returnera en minimal JSON enligt schemat med tomma listor.\n"

// temperatureFor returns the sampling temperature per mode and attempt:
// external runs colder, and retries run colder still.
func temperatureFor(mode Mode, attempt int) float64 {
	if mode == ModeExternal {
		if attempt == 0 {
			return 0.1
		}
		return 0.0
	}
	if attempt == 0 {
		return 0.2
	}
	return 0.1
}
