// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// degenerateNorm is the smallest quaternion norm accepted by Normalize.
const degenerateNorm = 1e-9

// ErrDegenerateQuaternion is returned when a quaternion is too close to zero
// to describe a rotation.
var ErrDegenerateQuaternion = errors.New("degenerate quaternion")

// Pose is the canonical Euler representation of orientation, in degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Quaternion is a rotation quaternion, scalar first (qw, qx, qy, qz).
type Quaternion struct {
	W float64 `json:"qw"`
	X float64 `json:"qx"`
	Y float64 `json:"qy"`
	Z float64 `json:"qz"`
}

// Identity is the quaternion of the null rotation.
var Identity = Quaternion{W: 1}

func (q Quaternion) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

func fromNumber(n quat.Number) Quaternion {
	return Quaternion{W: n.Real, X: n.Imag, Y: n.Jmag, Z: n.Kmag}
}

// Norm returns the Euclidean norm of q.
func (q Quaternion) Norm() float64 {
	return quat.Abs(q.number())
}

// Normalize returns q scaled to unit norm. It fails with
// ErrDegenerateQuaternion when the norm is below 1e-9 or not finite.
func Normalize(q Quaternion) (Quaternion, error) {
	n := q.Norm()
	if n < degenerateNorm || math.IsNaN(n) || math.IsInf(n, 0) {
		return Quaternion{}, ErrDegenerateQuaternion
	}
	return fromNumber(quat.Scale(1/n, q.number())), nil
}

// ToEuler decomposes a unit quaternion into aerospace (ZYX) angles in degrees.
// The pitch argument is clamped to [-1, 1] so gimbal lock saturates at ±90°.
func ToEuler(q Quaternion) Pose {
	sinrCosp := 2 * (q.W*q.X + q.Y*q.Z)
	cosrCosp := 1 - 2*(q.X*q.X+q.Y*q.Y)
	roll := math.Atan2(sinrCosp, cosrCosp)

	sinp := 2 * (q.W*q.Y - q.Z*q.X)
	pitch := math.Asin(math.Max(-1, math.Min(1, sinp)))

	sinyCosp := 2 * (q.W*q.Z + q.X*q.Y)
	cosyCosp := 1 - 2*(q.Y*q.Y+q.Z*q.Z)
	yaw := math.Atan2(sinyCosp, cosyCosp)

	return Pose{
		Roll:  roll * 180.0 / math.Pi,
		Pitch: pitch * 180.0 / math.Pi,
		Yaw:   yaw * 180.0 / math.Pi,
	}
}

// Matrix is a 3x3 row-major direction cosine matrix.
type Matrix [3][3]float64

// RotationMatrix returns the sensor-to-world rotation for q.
// q must already be unit norm; it is not renormalized here.
func RotationMatrix(q Quaternion) Matrix {
	w, x, y, z := q.W, q.X, q.Y, q.Z
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	return Matrix{
		{1 - 2*(yy+zz), 2 * (xy - wz), 2 * (xz + wy)},
		{2 * (xy + wz), 1 - 2*(xx+zz), 2 * (yz - wx)},
		{2 * (xz - wy), 2 * (yz + wx), 1 - 2*(xx+yy)},
	}
}

// MulVec returns m·v.
func (m Matrix) MulVec(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}
