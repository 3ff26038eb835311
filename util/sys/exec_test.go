package sys_test

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayugoro/xray/util/sys"
)

func TestCommandDetail(t *testing.T) {
	boom := errors.New("exit status 1")
	assert.Equal(t, "Unit xray.service not found.", sys.CommandDetail(nil, []byte("Unit xray.service not found.\n"), boom))
	assert.Equal(t, "partial", sys.CommandDetail([]byte(" partial "), nil, boom))
	assert.Equal(t, "exit status 1", sys.CommandDetail(nil, nil, boom))
	assert.Empty(t, sys.CommandDetail(nil, nil, nil))
}

func TestExecRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	stdout, stderr, err := sys.ExecRunner{}.Run(context.Background(), "sh", "-c", "echo out; echo err 1>&2; exit 3")
	require.Error(t, err)
	assert.Equal(t, "out\n", string(stdout))
	assert.Equal(t, "err\n", string(stderr))
}
