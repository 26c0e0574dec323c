package estimator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/imu_telemetry/internal/imu"
	"github.com/relabs-tech/imu_telemetry/internal/orientation"
)

const (
	stepMicros = 10000 // 10 ms at the default 1e6 time scale
	gravity    = 9.81
)

// still is a stationary sample: gravity only, no rotation rate.
func still(ts uint64) imu.Sample {
	return imu.Sample{Timestamp: ts, Qw: 1, Az: gravity}
}

// pushing is accelerating upward by 0.2 m/s², above the ZUPT threshold.
func pushing(ts uint64) imu.Sample {
	return imu.Sample{Timestamp: ts, Qw: 1, Az: gravity + 0.2}
}

func yaw90() orientation.Quaternion {
	return orientation.Quaternion{W: math.Cos(math.Pi / 4), Z: math.Sin(math.Pi / 4)}
}

func feed(t *testing.T, e *Estimator, samples ...imu.Sample) {
	t.Helper()
	for _, s := range samples {
		require.NoError(t, e.Update(s))
	}
}

func TestInitialState(t *testing.T) {
	st := New(DefaultConfig()).State()
	assert.Equal(t, orientation.Identity, st.Orientation)
	assert.Equal(t, r3.Vec{}, st.Velocity)
	assert.Equal(t, r3.Vec{}, st.Position)
	assert.Empty(t, st.Trajectory)
	assert.False(t, st.HasTimestamp)
}

func TestFirstSampleOnlyInitializes(t *testing.T) {
	e := New(DefaultConfig())
	q := yaw90()
	require.NoError(t, e.Update(imu.Sample{Timestamp: 500, Qw: q.W, Qz: q.Z, Az: 30}))

	st := e.State()
	assert.True(t, st.HasTimestamp)
	assert.Equal(t, uint64(500), st.LastTimestamp)
	assert.InDelta(t, q.Z, st.Orientation.Z, 1e-12)
	assert.Equal(t, r3.Vec{}, st.Velocity)
	assert.Equal(t, r3.Vec{}, st.Position)
	assert.Empty(t, st.Trajectory)
	assert.Zero(t, st.Counters.Integrated)
}

func TestDegenerateQuaternionSkipsSample(t *testing.T) {
	e := New(DefaultConfig())
	feed(t, e, pushing(0), pushing(stepMicros))
	before := e.State()

	err := e.Update(imu.Sample{Timestamp: 2 * stepMicros, Az: gravity + 5})
	assert.ErrorIs(t, err, orientation.ErrDegenerateQuaternion)

	after := e.State()
	assert.Equal(t, before.Orientation, after.Orientation)
	assert.Equal(t, before.Velocity, after.Velocity)
	assert.Equal(t, before.Position, after.Position)
	assert.Equal(t, before.Trajectory, after.Trajectory)
	assert.Equal(t, before.LastTimestamp, after.LastTimestamp)
	assert.Equal(t, uint64(1), after.Counters.SkippedDegenerate)
}

func TestNonFiniteSampleIsSkipped(t *testing.T) {
	nan, inf := math.NaN(), math.Inf(1)
	tests := []struct {
		name   string
		sample imu.Sample
	}{
		{"nan accel", imu.Sample{Timestamp: 2 * stepMicros, Qw: 1, Ax: nan, Az: gravity + 0.2}},
		{"inf accel", imu.Sample{Timestamp: 2 * stepMicros, Qw: 1, Az: -inf}},
		{"nan gyro", imu.Sample{Timestamp: 2 * stepMicros, Qw: 1, Az: gravity, Gz: nan}},
		{"inf quaternion", imu.Sample{Timestamp: 2 * stepMicros, Qw: inf, Az: gravity}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(DefaultConfig())
			feed(t, e, pushing(0), pushing(stepMicros))
			before := e.State()

			assert.ErrorIs(t, e.Update(tt.sample), ErrNonFiniteSample)

			after := e.State()
			assert.Equal(t, before.Orientation, after.Orientation)
			assert.Equal(t, before.Velocity, after.Velocity)
			assert.Equal(t, before.Position, after.Position)
			assert.Equal(t, before.Trajectory, after.Trajectory)
			assert.Equal(t, before.LastTimestamp, after.LastTimestamp)
			assert.Equal(t, uint64(1), after.Counters.SkippedNonFinite)

			// later samples integrate normally
			feed(t, e, pushing(2*stepMicros), still(3*stepMicros))
			st := e.State()
			assert.False(t, math.IsNaN(st.Position.Z))
			assert.InDelta(t, 0.004*0.01+0.002*0.01, st.Position.Z, 1e-12)
		})
	}
}

func TestDegenerateFirstSampleLeavesTimestampUnset(t *testing.T) {
	e := New(DefaultConfig())
	assert.Error(t, e.Update(imu.Sample{Timestamp: 7}))
	assert.False(t, e.State().HasTimestamp)
}

func TestZeroTimeDeltaNeverIntegrates(t *testing.T) {
	e := New(DefaultConfig())
	require.NoError(t, e.Update(pushing(1000)))
	for i := 0; i < 50; i++ {
		err := e.Update(pushing(1000))
		assert.ErrorIs(t, err, ErrInvalidTimeDelta)
		st := e.State()
		assert.Equal(t, r3.Vec{}, st.Velocity)
		assert.Equal(t, r3.Vec{}, st.Position)
		assert.Empty(t, st.Trajectory)
	}
	assert.Equal(t, uint64(50), e.State().Counters.SkippedTimeDelta)
}

func TestStationaryKeepsVelocityZero(t *testing.T) {
	e := New(DefaultConfig())
	for i := 0; i < 500; i++ {
		// small sensor noise inside both thresholds
		s := still(uint64(i * stepMicros))
		s.Ax = 0.05 * math.Sin(float64(i))
		s.Gz = 0.01
		require.NoError(t, e.Update(s))
		st := e.State()
		require.Equal(t, r3.Vec{}, st.Velocity, "sample %d", i)
		require.Equal(t, r3.Vec{}, st.Position, "sample %d", i)
	}
	st := e.State()
	assert.True(t, st.Stationary)
	assert.Equal(t, uint64(499), st.Counters.Stationary)
	assert.Len(t, st.Trajectory, 499)
}

func TestZUPTNeedsBothConditions(t *testing.T) {
	tests := []struct {
		name       string
		accel      r3.Vec
		gyro       r3.Vec
		stationary bool
	}{
		{"still", r3.Vec{Z: gravity}, r3.Vec{}, true},
		{"just inside accel threshold", r3.Vec{Z: gravity + 0.149}, r3.Vec{}, true},
		{"accel off gravity", r3.Vec{Z: gravity + 0.2}, r3.Vec{}, false},
		{"rotating", r3.Vec{Z: gravity}, r3.Vec{X: 0.03, Y: 0.03, Z: 0.03}, false},
		{"free fall", r3.Vec{}, r3.Vec{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(DefaultConfig())
			s := imu.Sample{Qw: 1,
				Ax: tt.accel.X, Ay: tt.accel.Y, Az: tt.accel.Z,
				Gx: tt.gyro.X, Gy: tt.gyro.Y, Gz: tt.gyro.Z}
			feed(t, e, s)
			s.Timestamp = stepMicros
			feed(t, e, s)
			assert.Equal(t, tt.stationary, e.State().Stationary)
		})
	}
}

func TestZUPTResetsVelocityButNotPosition(t *testing.T) {
	e := New(DefaultConfig())
	for i := 0; i < 20; i++ {
		feed(t, e, pushing(uint64(i*stepMicros)))
	}
	moving := e.State()
	require.Greater(t, moving.Velocity.Z, 0.0)

	feed(t, e, still(20*stepMicros))
	st := e.State()
	assert.Equal(t, r3.Vec{}, st.Velocity)
	assert.Equal(t, moving.Position, st.Position)
	assert.Equal(t, moving.Position, st.Trajectory[len(st.Trajectory)-1])
}

func TestLargeTimeDeltaOnlyUpdatesOrientation(t *testing.T) {
	e := New(DefaultConfig())
	var ts uint64
	for i := 0; i < 10; i++ {
		ts = uint64(i * stepMicros)
		feed(t, e, pushing(ts))
	}
	before := e.State()

	q := yaw90()
	stall := imu.Sample{Timestamp: ts + 5_000_000, Qw: q.W, Qz: q.Z, Az: gravity + 3}
	err := e.Update(stall)
	assert.ErrorIs(t, err, ErrInvalidTimeDelta)

	after := e.State()
	assert.Equal(t, before.Velocity, after.Velocity)
	assert.Equal(t, before.Position, after.Position)
	assert.Equal(t, before.Trajectory, after.Trajectory)
	assert.InDelta(t, q.W, after.Orientation.W, 1e-12)
	assert.InDelta(t, q.Z, after.Orientation.Z, 1e-12)
	assert.Equal(t, stall.Timestamp, after.LastTimestamp)

	// integration resumes relative to the stalled sample
	next := pushing(stall.Timestamp + stepMicros)
	feed(t, e, next)
	assert.Len(t, e.State().Trajectory, len(before.Trajectory)+1)
}

func TestClockResetIsSkipped(t *testing.T) {
	e := New(DefaultConfig())
	feed(t, e, pushing(1_000_000), pushing(1_000_000+stepMicros))
	before := e.State()

	err := e.Update(pushing(100))
	assert.ErrorIs(t, err, ErrInvalidTimeDelta)
	assert.Equal(t, before.Position, e.State().Position)
	assert.Equal(t, uint64(100), e.State().LastTimestamp)

	feed(t, e, pushing(100+stepMicros))
	assert.Equal(t, uint64(2), e.State().Counters.Integrated)
}

func TestAccelerationIsRotatedToWorld(t *testing.T) {
	e := New(DefaultConfig())
	q := yaw90()
	// sensor x points along world y after a 90° yaw
	s := imu.Sample{Qw: q.W, Qz: q.Z, Ax: 1, Az: gravity, Gz: 0.1}
	feed(t, e, s)
	s.Timestamp = stepMicros
	feed(t, e, s)

	st := e.State()
	assert.False(t, st.Stationary)
	assert.InDelta(t, 0.0, st.Velocity.X, 1e-12)
	assert.InDelta(t, 0.01, st.Velocity.Y, 1e-12)
	assert.InDelta(t, 0.0, st.Velocity.Z, 1e-12)
	assert.InDelta(t, 1e-4, st.Position.Y, 1e-12)
}

func TestNonUnitQuaternionIsNormalized(t *testing.T) {
	unit := New(DefaultConfig())
	scaled := New(DefaultConfig())
	q := yaw90()
	for i := 0; i < 30; i++ {
		s := imu.Sample{Timestamp: uint64(i * stepMicros), Qw: q.W, Qz: q.Z, Ax: 0.7, Az: gravity + 0.4}
		feed(t, unit, s)
		s.Qw, s.Qz = 3*q.W, 3*q.Z
		feed(t, scaled, s)
	}
	u, sc := unit.State(), scaled.State()
	assert.InDelta(t, u.Position.X, sc.Position.X, 1e-12)
	assert.InDelta(t, u.Position.Y, sc.Position.Y, 1e-12)
	assert.InDelta(t, u.Position.Z, sc.Position.Z, 1e-12)
	assert.InDelta(t, 1.0, sc.Orientation.Norm(), 1e-12)
}

func TestTrajectoryIsBounded(t *testing.T) {
	t.Run("small capacity keeps the last K in order", func(t *testing.T) {
		const k = 10
		cfg := DefaultConfig()
		cfg.TrajectoryCapacity = k
		e := New(cfg)

		feed(t, e, pushing(0))
		var positions []r3.Vec
		for i := 1; i <= k+5; i++ {
			feed(t, e, pushing(uint64(i*stepMicros)))
			positions = append(positions, e.State().Position)
		}
		st := e.State()
		require.Len(t, st.Trajectory, k)
		assert.Equal(t, positions[5:], st.Trajectory)
	})

	t.Run("default capacity", func(t *testing.T) {
		e := New(DefaultConfig())
		for i := 0; i <= 2005; i++ {
			feed(t, e, pushing(uint64(i*stepMicros)))
			require.LessOrEqual(t, len(e.State().Trajectory), 2000)
		}
		st := e.State()
		assert.Len(t, st.Trajectory, 2000)
		assert.Equal(t, st.Position, st.Trajectory[1999])
		assert.Equal(t, uint64(2005), st.Counters.Integrated)
	})
}

// Constant upward push of 0.2 m/s² for one second at 100 Hz. Forward Euler
// with velocity updated first gives v_n = 0.002·n and p_n = 1e-5·n·(n+1).
func TestConstantAccelerationRegression(t *testing.T) {
	e := New(DefaultConfig())
	feed(t, e, pushing(0))

	fixture := map[int]struct{ v, p float64 }{
		1:   {0.002, 0.00002},
		2:   {0.004, 0.00006},
		10:  {0.02, 0.0011},
		50:  {0.1, 0.0255},
		100: {0.2, 0.101},
	}

	prev := 0.0
	for n := 1; n <= 100; n++ {
		feed(t, e, pushing(uint64(n*stepMicros)))
		st := e.State()
		speed := r3.Norm(st.Velocity)
		require.Greater(t, speed, prev, "velocity must grow monotonically (n=%d)", n)
		prev = speed
		require.False(t, st.Stationary)

		if want, ok := fixture[n]; ok {
			assert.InDelta(t, want.v, st.Velocity.Z, 1e-9, "velocity at n=%d", n)
			assert.InDelta(t, want.p, st.Position.Z, 1e-9, "position at n=%d", n)
			assert.Zero(t, st.Velocity.X)
			assert.Zero(t, st.Velocity.Y)
		}
	}
	assert.Len(t, e.State().Trajectory, 100)
}

func TestResetAndDefaults(t *testing.T) {
	e := New(Config{})
	assert.Equal(t, DefaultConfig(), e.Config())

	feed(t, e, pushing(0), pushing(stepMicros))
	e.Reset()
	st := e.State()
	assert.False(t, st.HasTimestamp)
	assert.Empty(t, st.Trajectory)
	assert.Equal(t, Counters{}, st.Counters)
	assert.Equal(t, DefaultConfig(), e.Config())
}

func TestZUPTThresholdDefaults(t *testing.T) {
	e := New(Config{GyroThreshold: 0})
	assert.Equal(t, DefaultConfig().GyroThreshold, e.Config().GyroThreshold)

	// a negative threshold is kept and no sample is ever stationary
	e = New(Config{GyroThreshold: -1})
	assert.Equal(t, -1.0, e.Config().GyroThreshold)
	feed(t, e, still(0), still(stepMicros), still(2*stepMicros))
	st := e.State()
	assert.Zero(t, st.Counters.Stationary)
	assert.False(t, st.Stationary)
	assert.Equal(t, uint64(2), st.Counters.Integrated)
}

func TestCurrentOmitsTrajectory(t *testing.T) {
	e := New(DefaultConfig())
	feed(t, e, pushing(0), pushing(stepMicros), pushing(2*stepMicros))

	cur := e.Current()
	assert.Nil(t, cur.Trajectory)
	assert.Equal(t, 2, e.TrajectoryLen())
	assert.Equal(t, e.State().Position, cur.Position)
}
