package recorder

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/imu_telemetry/internal/imu"
)

func TestLogAppend(t *testing.T) {
	l := NewLog(1e6)
	l.Append(imu.Sample{Timestamp: 1_000_000, Qw: 1})
	l.Append(imu.Sample{Timestamp: 1_016_000, Qw: 1})
	l.Append(imu.Sample{Timestamp: 1_016_000, Qw: 1})

	rows := l.Rows()
	require.Len(t, rows, 3)
	assert.Zero(t, rows[0].Dt)
	assert.InDelta(t, 0.016, rows[1].Dt, 1e-12)
	assert.Zero(t, rows[2].Dt)
}

func TestLogNeverDrops(t *testing.T) {
	l := NewLog(0)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				l.Append(imu.Sample{Timestamp: uint64(w*1000 + i)})
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 4000, l.Len())
}

func TestWriteCSV(t *testing.T) {
	l := NewLog(1e6)
	l.Append(imu.Sample{Timestamp: 10, Qw: 1, Az: 9.81})
	l.Append(imu.Sample{Timestamp: 20010, Qw: 0.5, Qx: 0.5, Qy: 0.5, Qz: 0.5, Ax: -0.25, Gz: 0.125})

	var buf bytes.Buffer
	require.NoError(t, l.WriteCSV(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "timestamp,dt,qw,qx,qy,qz,ax,ay,az,gx,gy,gz", lines[0])
	assert.Equal(t, "10,0,1,0,0,0,0,0,9.81,0,0,0", lines[1])
	assert.Equal(t, "20010,0.02,0.5,0.5,0.5,0.5,-0.25,0,0,0,0,0.125", lines[2])
}

func TestSaveAndReadCSV(t *testing.T) {
	l := NewLog(1e6)
	want := []imu.Sample{
		{Timestamp: 0, Qw: 1, Az: 9.81},
		{Timestamp: 10000, Qw: 0.9, Qz: 0.1, Ax: 0.3, Ay: -0.2, Az: 9.7, Gx: 0.01, Gy: 0.02, Gz: 0.3},
	}
	for _, s := range want {
		l.Append(s)
	}

	path := filepath.Join(t.TempDir(), "rec.csv")
	require.NoError(t, l.SaveCSV(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := ReadCSV(f)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReadCSVTolerantColumns(t *testing.T) {
	// column order of the dashboard export, with a float timestamp
	in := "timestamp,dt,ax,ay,az,gx,gy,gz,qw,qx,qy,qz\n" +
		"1500.0,0,0,0,9.81,0,0,0,1,0,0,0\n" +
		"2500,0.001,,0,9.81,0,0,0,1,0,0,0\n"
	got, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(1500), got[0].Timestamp)
	assert.Equal(t, 9.81, got[1].Az)
	assert.Zero(t, got[1].Ax)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("qw,qx\n1,0\n"))
	assert.ErrorContains(t, err, "timestamp")

	_, err = ReadCSV(strings.NewReader("timestamp,qw\n1,abc\n"))
	assert.ErrorContains(t, err, "line 2")

	for _, in := range []string{
		"timestamp,qw,ax\n1,1,nan\n",
		"timestamp,qw,ax\n1,1,NaN\n",
		"timestamp,qw,gz\n1,1,inf\n",
		"timestamp,qw,gz\n1,-Inf,0\n",
		"timestamp,qw\nNaN,1\n",
		"timestamp,qw\n+Inf,1\n",
	} {
		_, err = ReadCSV(strings.NewReader(in))
		assert.ErrorContains(t, err, "line 2", in)
	}
}
