package entities

// ActionID identifies one of the assistant's capabilities. The set is closed:
// free-form classifier output is normalized through ParseAction before it is
// allowed anywhere near a dispatch.
type ActionID string

const (
	ActionText     ActionID = "text"
	ActionMoney    ActionID = "money"
	ActionItem     ActionID = "item"
	ActionProduct  ActionID = "product"
	ActionDistance ActionID = "distance"
	ActionFace     ActionID = "face"
	ActionAddFace  ActionID = "add_face"
	ActionMusic    ActionID = "music"
)

// DefaultAction is the fallback when classification is uncertain or fails.
const DefaultAction = ActionText

var actionVocabulary = map[ActionID]bool{
	ActionText:     true,
	ActionMoney:    true,
	ActionItem:     true,
	ActionProduct:  true,
	ActionDistance: true,
	ActionFace:     true,
	ActionAddFace:  true,
	ActionMusic:    true,
}

// Actions returns the full action vocabulary.
func Actions() []ActionID {
	return []ActionID{
		ActionText, ActionMoney, ActionItem, ActionProduct,
		ActionDistance, ActionFace, ActionAddFace, ActionMusic,
	}
}

// ParseAction maps raw classifier output to a member of the vocabulary.
// It is total: anything outside the closed set resolves to DefaultAction.
func ParseAction(raw string) ActionID {
	id := ActionID(raw)
	if actionVocabulary[id] {
		return id
	}
	return DefaultAction
}

// IsValid reports whether the action is a member of the vocabulary.
func (a ActionID) IsValid() bool {
	return actionVocabulary[a]
}

func (a ActionID) String() string {
	return string(a)
}
