package cores

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echo_nexus/internal/shared"
	"echo_nexus/internal/shared/errors"
	"echo_nexus/internal/shared/logger"
	"echo_nexus/internal/shared/types"
)

const cpuinfoSample = `processor	: 0
vendor_id	: GenuineIntel
model name	: Intel(R) Xeon(R) CPU
flags		: fpu vme de pse

processor	: 1
vendor_id	: GenuineIntel
model name	: Intel(R) Xeon(R) CPU

processor	: 2
vendor_id	: GenuineIntel

processor	: 3
power management:
`

const profilerSample = `Hardware:

    Hardware Overview:

      Model Name: MacBook Pro
      Model Identifier: MacBookPro18,3
      Chip: Apple M1 Pro
      Total Number of Cores: 10 (8 performance and 2 efficiency)
      Memory: 16 GB
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cpuinfo")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCPUInfoCounter_CountsProcessorLines(t *testing.T) {
	c := &CPUInfoCounter{Path: writeFile(t, cpuinfoSample), Matcher: NewMatchers().Processor}
	n, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestCPUInfoCounter_MissingFile(t *testing.T) {
	c := &CPUInfoCounter{Path: filepath.Join(t.TempDir(), "missing"), Matcher: NewMatchers().Processor}
	_, err := c.Count()
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindDetection))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCPUInfoCounter_NoProcessorLines(t *testing.T) {
	c := &CPUInfoCounter{Path: writeFile(t, "vendor_id : x\n"), Matcher: NewMatchers().Processor}
	_, err := c.Count()
	assert.True(t, errors.IsKind(err, errors.KindDetection))
}

func TestProfilerCounter(t *testing.T) {
	m := NewMatchers()
	tests := []struct {
		name    string
		out     []byte
		runErr  error
		want    int
		wantErr bool
	}{
		{name: "parses field", out: []byte(profilerSample), want: 10},
		{name: "command fails", runErr: fmt.Errorf("exec: not found"), wantErr: true},
		{name: "field missing", out: []byte("Hardware:\n  Memory: 8 GB\n"), wantErr: true},
		{name: "not utf8", out: []byte{0xff, 0xfe, 0xfd}, wantErr: true},
		{name: "zero cores", out: []byte("Number of Cores: 0\n"), wantErr: true},
		{name: "overflow", out: []byte("Number of Cores: 99999999999999999999999\n"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotName string
			var gotArgs []string
			c := &ProfilerCounter{
				Matcher: m.CoreField,
				Run: func(name string, args ...string) ([]byte, error) {
					gotName, gotArgs = name, args
					return tt.out, tt.runErr
				},
			}
			n, err := c.Count()
			assert.Equal(t, "system_profiler", gotName)
			assert.Equal(t, []string{"SPHardwareDataType"}, gotArgs)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsKind(err, errors.KindDetection))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestNew_Selection(t *testing.T) {
	m := NewMatchers()

	assert.IsType(t, &CPUInfoCounter{}, New(DetectorAuto, "linux", "/proc/cpuinfo", m))
	assert.IsType(t, &ProfilerCounter{}, New(DetectorAuto, "darwin", "", m))
	assert.IsType(t, &CPUInfoCounter{}, New(DetectorCPUInfo, "darwin", "/proc/cpuinfo", m))
	assert.IsType(t, AffinityCounter{}, New(DetectorAffinity, "linux", "", m))

	_, err := New(DetectorAuto, "plan9", "", m).Count()
	assert.True(t, errors.IsKind(err, errors.KindDetection))

	_, err = New("bogus", "linux", "", m).Count()
	assert.True(t, errors.IsKind(err, errors.KindDetection))
}

func TestAffinityCounter(t *testing.T) {
	n, err := AffinityCounter{}.Count()
	if runtime.GOOS != "linux" {
		assert.True(t, errors.IsKind(err, errors.KindDetection))
		return
	}
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)
}

func TestDetect_FallbackLogsDiagnostic(t *testing.T) {
	buf := shared.NewThreadSafeBuffer()
	require.NoError(t, logger.InitWithWriter(types.LogConf{Level: "info"}, buf))

	c := New(DetectorCPUInfo, "linux", filepath.Join(t.TempDir(), "missing"), NewMatchers())
	assert.Equal(t, 1, Detect(c, 1))
	assert.Contains(t, buf.String(), "failed to get CPU cores")
}

func TestDetect_Success(t *testing.T) {
	c := &CPUInfoCounter{Path: writeFile(t, cpuinfoSample), Matcher: NewMatchers().Processor}
	assert.Equal(t, 4, Detect(c, 1))
}
