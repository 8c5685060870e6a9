package viewer

import (
	"math"
	"sync"
)

const (
	defaultFOV      = 60
	defaultNear     = 0.01
	defaultFar      = 50
	defaultDamping  = 0.1
	minOrbitRadius  = 0.05
	maxOrbitRadius  = 40
	polarEpsilon    = 1e-3
	settleThreshold = 1e-6
)

// CameraState is the view camera for one frame.
type CameraState struct {
	Eye    [3]float64
	Target [3]float64
	Up     [3]float64
	FOV    float64
	Aspect float64
	Near   float64
	Far    float64
}

// OrbitCamera orbits a target with damped rotate, pan and zoom input.
type OrbitCamera struct {
	mu      sync.Mutex
	target  [3]float64
	radius  float64
	theta   float64 // azimuth around +Y
	phi     float64 // polar angle from +Y
	aspect  float64
	damping float64

	dTheta, dPhi float64
	dPan         [3]float64
	zoom         float64
}

// NewOrbitCamera places the camera at eye looking at target.
func NewOrbitCamera(eye, target [3]float64) *OrbitCamera {
	c := &OrbitCamera{target: target, aspect: 1, damping: defaultDamping, zoom: 1}
	dx, dy, dz := eye[0]-target[0], eye[1]-target[1], eye[2]-target[2]
	c.radius = math.Max(minOrbitRadius, math.Sqrt(dx*dx+dy*dy+dz*dz))
	c.theta = math.Atan2(dx, dz)
	c.phi = math.Acos(math.Max(-1, math.Min(1, dy/c.radius)))
	return c
}

// DefaultOrbitCamera matches the reference scene's starting view.
func DefaultOrbitCamera() *OrbitCamera {
	return NewOrbitCamera([3]float64{1.2, 0.9, 1.4}, [3]float64{})
}

// Rotate queues an orbit by the given azimuth and polar deltas in radians.
func (c *OrbitCamera) Rotate(dTheta, dPhi float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dTheta += dTheta
	c.dPhi += dPhi
}

// Pan queues a target translation in camera-right and camera-up units of the orbit radius.
func (c *OrbitCamera) Pan(dx, dy float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	right, up := c.basis()
	for i := range 3 {
		c.dPan[i] += (right[i]*dx + up[i]*dy) * c.radius
	}
}

// Zoom queues a radius scale. Values below 1 move closer.
func (c *OrbitCamera) Zoom(factor float64) {
	if factor <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zoom *= factor
}

// SetAspect updates the viewport aspect ratio.
func (c *OrbitCamera) SetAspect(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = float64(width) / float64(height)
}

// Update applies one damping step of queued input and reports whether the
// camera is still moving.
func (c *OrbitCamera) Update() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := c.damping
	c.theta += c.dTheta * k
	c.phi = math.Max(polarEpsilon, math.Min(math.Pi-polarEpsilon, c.phi+c.dPhi*k))
	for i := range 3 {
		c.target[i] += c.dPan[i] * k
		c.dPan[i] *= 1 - k
	}
	zoomStep := math.Pow(c.zoom, k)
	c.radius = math.Max(minOrbitRadius, math.Min(maxOrbitRadius, c.radius*zoomStep))
	c.zoom /= zoomStep

	c.dTheta *= 1 - k
	c.dPhi *= 1 - k

	moving := math.Abs(c.dTheta) > settleThreshold || math.Abs(c.dPhi) > settleThreshold ||
		math.Abs(c.zoom-1) > settleThreshold
	for i := range 3 {
		moving = moving || math.Abs(c.dPan[i]) > settleThreshold
	}
	return moving
}

// State returns the current view.
func (c *OrbitCamera) State() CameraState {
	c.mu.Lock()
	defer c.mu.Unlock()
	sinPhi := math.Sin(c.phi)
	return CameraState{
		Eye: [3]float64{
			c.target[0] + c.radius*sinPhi*math.Sin(c.theta),
			c.target[1] + c.radius*math.Cos(c.phi),
			c.target[2] + c.radius*sinPhi*math.Cos(c.theta),
		},
		Target: c.target,
		Up:     [3]float64{0, 1, 0},
		FOV:    defaultFOV,
		Aspect: c.aspect,
		Near:   defaultNear,
		Far:    defaultFar,
	}
}

// basis returns the camera right and up vectors. Caller holds mu.
func (c *OrbitCamera) basis() (right, up [3]float64) {
	right = [3]float64{math.Cos(c.theta), 0, -math.Sin(c.theta)}
	up = [3]float64{
		-math.Cos(c.phi) * math.Sin(c.theta),
		math.Sin(c.phi),
		-math.Cos(c.phi) * math.Cos(c.theta),
	}
	return right, up
}
