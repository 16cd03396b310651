package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"report.txt", "report.txt"},
		{"../../etc/passwd", "passwd"},
		{"/abs/path/model.ckpt", "model.ckpt"},
		{"..hidden", "hidden"},
		{"my report (final).csv", "my_report_final.csv"},
		{"日本語.txt", "txt"},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, SanitizeFilename(c.in), "input %q", c.in)
	}
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("pipe-1", "run-1", "art-1", "output.txt")
	assert.Equal(t, "pipe-1/run-1/art-1-output.txt", key)
}
