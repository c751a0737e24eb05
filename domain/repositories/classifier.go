package repositories

import "context"

// IntentClassifier abstracts the text-completion collaborator that maps a
// transcript to an action identifier. Implementations return the raw model
// output; vocabulary validation belongs to entities.ParseAction, not here.
type IntentClassifier interface {
	Classify(ctx context.Context, transcript string) (string, error)
}
