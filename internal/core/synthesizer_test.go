package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerSynthesizer_Prompt(t *testing.T) {
	gen := &fakeGenerator{out: "  Blue.  "}
	s := NewAnswerSynthesizer(gen, 0)

	out, err := s.Synthesize(context.Background(), []string{"The sky is blue.", "Grass is green."}, "What color is the sky?")
	require.NoError(t, err)
	assert.Equal(t, "Blue.", out)
	assert.Equal(t, "Based on the following information:\nThe sky is blue.\nGrass is green.\nAnswer the question: What color is the sky?", gen.prompt)
	assert.Equal(t, DefaultMaxAnswerTokens, gen.maxTokens)
}

func TestAnswerSynthesizer_Failures(t *testing.T) {
	_, err := NewAnswerSynthesizer(&fakeGenerator{out: " \n "}, 10).Synthesize(context.Background(), []string{"x"}, "q?")
	assert.ErrorIs(t, err, ErrGenerationFailure)

	backendErr := errors.New("model offline")
	_, err = NewAnswerSynthesizer(&fakeGenerator{err: backendErr}, 10).Synthesize(context.Background(), []string{"x"}, "q?")
	assert.ErrorIs(t, err, ErrGenerationFailure)
	assert.ErrorIs(t, err, backendErr)
}
