package advisory

// FieldNames are the JSON keys the oracle is asked to use. Some prompt variants ask for
// "conf" instead of "confidence"; the parser accepts the configured name and the known aliases.
type FieldNames struct {
	Signal     string
	Confidence string
	Reason     string
}

func DefaultFieldNames() FieldNames {
	return FieldNames{Signal: "signal", Confidence: "confidence", Reason: "reason"}
}

func (f FieldNames) withDefaults() FieldNames {
	d := DefaultFieldNames()
	if f.Signal == "" {
		f.Signal = d.Signal
	}
	if f.Confidence == "" {
		f.Confidence = d.Confidence
	}
	if f.Reason == "" {
		f.Reason = d.Reason
	}
	return f
}

var aliases = map[string][]string{
	"signal":     {"signal", "action", "decision"},
	"confidence": {"confidence", "conf"},
	"reason":     {"reason", "rationale"},
}

// candidates returns the configured key first, then the aliases of its role.
func candidates(configured, role string) []string {
	out := []string{configured}
	for _, a := range aliases[role] {
		if a != configured {
			out = append(out, a)
		}
	}
	return out
}
