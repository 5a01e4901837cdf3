//go:build !whisper_cpp

package engine

import (
	"context"

	"github.com/rs/zerolog"
)

// NativeLoader is a stub so the project builds without the whisper_cpp tag.
type NativeLoader struct {
	log zerolog.Logger
}

// NewNativeLoader constructs the stub loader.
func NewNativeLoader(log zerolog.Logger) *NativeLoader {
	return &NativeLoader{log: log}
}

// Load always fails: the in-process backend needs the whisper_cpp build tag.
func (l *NativeLoader) Load(ctx context.Context, spec Spec) (Handle, error) {
	return nil, &Error{
		Kind: KindUnavailable,
		Op:   "load model",
		Msg:  "built without whisper_cpp support; use the cli backend or rebuild with -tags whisper_cpp",
	}
}
