package port

import "context"

// PhraseGenerator rewords a reply. It never decides anything: callers fall
// back to the template text on error or empty output.
type PhraseGenerator interface {
	Phrase(ctx context.Context, kind string, template string, facts map[string]string) (string, error)
}
