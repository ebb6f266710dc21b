package textnorm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStripRemovesMarksOnly(t *testing.T) {
	require.Equal(t, "Nguyen Van An", Strip("Nguyễn Văn An"))
	require.Equal(t, "le  thi", Strip("lê  thị"))
	require.Equal(t, "", Strip(""))
}

func TestStudentCodeCanonicalForm(t *testing.T) {
	cases := map[string]string{
		"34 TOÁN - 001035":  "34 TOAN - 001035",
		"34  toán - 001035": "34 TOAN - 001035",
		"12  tin-001":       "12 TIN-001",
		"Nguyễn Văn A":      "NGUYEN VAN A",
		" 9a5\t007 ":        "9A5 007",
	}
	for in, want := range cases {
		require.Equal(t, want, StudentCode(in), "input %q", in)
	}
}

func TestStudentCodeKeepsHyphenStructure(t *testing.T) {
	// Spacing around hyphens is significant; the two spellings stay distinct.
	require.NotEqual(t, StudentCode("34TOAN-001035"), StudentCode("34 TOAN - 001035"))
}

func TestLettersKeepsOnlyUppercaseAlpha(t *testing.T) {
	require.Equal(t, "TIN", Letters("12 tin"))
	require.Equal(t, "TOAN", Letters("34 TOÁN - 001035"))
	require.Equal(t, "", Letters("001035"))
}
