package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitCommands(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "splits a command list on top-level commas",
			input: "MEAN(R),DELAY(D),OUTPUT(Vout=V,Iout=I)",
			want:  []string{"MEAN(R)", "DELAY(D)", "OUTPUT(Vout=V,Iout=I)"},
		},
		{
			name:  "keeps commas inside parentheses",
			input: "F(A,B),G(C)",
			want:  []string{"F(A,B)", "G(C)"},
		},
		{
			name:  "keeps commas inside nested parentheses",
			input: "F(A,G(B,C)),H(D)",
			want:  []string{"F(A,G(B,C))", "H(D)"},
		},
		{
			name:  "splits output pairs",
			input: "Vout=V,Iout=I",
			want:  []string{"Vout=V", "Iout=I"},
		},
		{
			name:  "single segment without commas",
			input: "MEAN(R)",
			want:  []string{"MEAN(R)"},
		},
		{
			name:  "preserves interior empty segments",
			input: "a,,b",
			want:  []string{"a", "", "b"},
		},
		{
			name:  "drops a trailing empty segment",
			input: "a,b,",
			want:  []string{"a", "b"},
		},
		{
			name:  "unclosed paren swallows the rest into one segment",
			input: "F(A,B,G(C)",
			want:  []string{"F(A,B,G(C)"},
		},
		{
			name:  "empty input yields nothing",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitCommands(tt.input)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("SplitCommands(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}
