package sequencer

// Token is a session generation stamp. Every scheduling pass carries the
// token that was current when it was armed; a callback whose token is no
// longer current is discarded when it fires.
type Token uint64

// Generation holds the single current token of one controller. It is not
// safe for concurrent use; it lives on the controller's loop.
type Generation struct {
	current Token
}

// Current returns the current token
func (g *Generation) Current() Token {
	return g.current
}

// Bump invalidates the current token and returns its successor
func (g *Generation) Bump() Token {
	g.current++
	return g.current
}

// IsCurrent reports whether t is the current token
func (g *Generation) IsCurrent(t Token) bool {
	return g.current == t
}
