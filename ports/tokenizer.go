package ports

import "github.com/layer-3/axiom/core"

// Tokenizer converts challenges to and from signed tokens
type Tokenizer interface {
	ChallengeToToken(challenge *core.Challenge) (string, error)
	TokenToChallenge(token string) (*core.Challenge, error)
}
