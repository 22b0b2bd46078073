// Package chess checks and applies moves with the notnil/chess rules engine.
package chess

import (
	"errors"
	"fmt"
	"strings"

	chesslib "github.com/notnil/chess"
)

var ErrIllegal = errors.New("illegal move")

// Board is a read-only view of the position.
type Board struct {
	FEN string
	// Turn is the color to move, white or black.
	Turn string
	// Outcome is * while the game goes on, otherwise 1-0, 0-1 or 1/2-1/2.
	Outcome string
}

func (b Board) String() string { return b.FEN }

func (b Board) Over() bool { return b.Outcome != "" && b.Outcome != string(chesslib.NoOutcome) }

// Validator keeps one game and accepts moves in SAN or UCI form.
type Validator struct {
	game    *chesslib.Game
	history []string
}

func New() *Validator {
	v := &Validator{}
	v.Reset()
	return v
}

func (v *Validator) Reset() {
	v.game = chesslib.NewGame(chesslib.UseNotation(chesslib.AlgebraicNotation{}))
	v.history = nil
}

// ApplyMove plays the move and returns the new position.
// The history keeps the SAN form of the move.
func (v *Validator) ApplyMove(token string) (Board, error) {
	pos := v.game.Position()
	m, err := v.decode(token)
	if err != nil {
		return v.CurrentBoard(), err
	}
	san := chesslib.AlgebraicNotation{}.Encode(pos, m)
	if err := v.game.Move(m); err != nil {
		return v.CurrentBoard(), fmt.Errorf("%w: %v", ErrIllegal, err)
	}
	v.history = append(v.history, san)
	return v.CurrentBoard(), nil
}

// Legal tells if the move can be played now, the game is not changed.
func (v *Validator) Legal(token string) bool {
	_, err := v.decode(token)
	return err == nil
}

func (v *Validator) CurrentBoard() Board {
	pos := v.game.Position()
	turn := "white"
	if pos.Turn() == chesslib.Black {
		turn = "black"
	}
	return Board{FEN: pos.String(), Turn: turn, Outcome: string(v.game.Outcome())}
}

func (v *Validator) History() []string { return append([]string(nil), v.history...) }

// Draw renders the position as text, white at the bottom.
func Draw(fen string) (string, error) {
	opt, err := chesslib.FEN(fen)
	if err != nil {
		return "", err
	}
	return chesslib.NewGame(opt).Position().Board().Draw(), nil
}

func (v *Validator) decode(token string) (*chesslib.Move, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty", ErrIllegal)
	}
	if v.game.Outcome() != chesslib.NoOutcome {
		return nil, fmt.Errorf("%w: the game is over", ErrIllegal)
	}
	pos := v.game.Position()
	if m, err := (chesslib.AlgebraicNotation{}).Decode(pos, token); err == nil {
		if valid := find(v.game.ValidMoves(), m); valid != nil {
			return valid, nil
		}
	}
	if m, err := (chesslib.UCINotation{}).Decode(pos, token); err == nil {
		if valid := find(v.game.ValidMoves(), m); valid != nil {
			return valid, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrIllegal, token)
}

func find(moves []*chesslib.Move, m *chesslib.Move) *chesslib.Move {
	for _, valid := range moves {
		if valid.S1() == m.S1() && valid.S2() == m.S2() && valid.Promo() == m.Promo() {
			return valid
		}
	}
	return nil
}
