package model

type FragmentKind string

const FRAGMENT_TEXT FragmentKind = "text"
const FRAGMENT_OPTIONS FragmentKind = "options"
const FRAGMENT_INPUT_REQUEST FragmentKind = "inputRequest"

// Fragment is one piece of an outbound response: plain text, a set of
// quick replies, or a request for structured input.
type Fragment struct {
	Kind    FragmentKind `json:"kind"`
	Text    string       `json:"text,omitempty"`
	Options []QuickReply `json:"options,omitempty"`
	Request *InputSpec   `json:"request,omitempty"`
}

type QuickReply struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// OutboundPayload is the ordered list of fragments returned to the
// channel adapter for one inbound message.
type OutboundPayload []Fragment

func TextFragment(text string) Fragment {
	return Fragment{Kind: FRAGMENT_TEXT, Text: text}
}

func OptionsFragment(text string, options []QuickReply) Fragment {
	return Fragment{Kind: FRAGMENT_OPTIONS, Text: text, Options: options}
}

func InputRequestFragment(text string, spec *InputSpec) Fragment {
	return Fragment{Kind: FRAGMENT_INPUT_REQUEST, Text: text, Request: spec}
}
