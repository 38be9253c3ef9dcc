// Package audiosource delivers blocks from a malgo capture device to a sink.
package audiosource

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/rawrecord/internal/errors"
	"github.com/tphakala/rawrecord/internal/logger"
)

const (
	// DefaultSampleRate is used when Config.SampleRate is zero.
	DefaultSampleRate = 48000

	// DefaultMaxFrames bounds the block size handed to the sink.
	DefaultMaxFrames = 1024

	restartDelay = 100 * time.Millisecond
)

// Config selects and configures the capture device.
type Config struct {
	Device     string // decoded device ID or name substring; empty for the default
	Channels   int
	SampleRate int
	MaxFrames  int
	Debug      bool
}

// Capture runs a malgo capture device and forwards each callback to a sink.
type Capture struct {
	cfg    Config
	log    logger.Logger
	sink   BlockSink
	deint  *Deinterleaver
	source DeviceInfo

	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu       sync.Mutex
	stopping atomic.Bool
	restarts atomic.Uint64
	frames   atomic.Uint64
}

// New opens the configured capture device. The device is not started.
func New(cfg Config, sink BlockSink, log logger.Logger) (*Capture, error) {
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = DefaultMaxFrames
	}
	if log == nil {
		log = logger.Global().Module("audiosource")
	}

	c := &Capture{
		cfg:   cfg,
		log:   log,
		sink:  sink,
		deint: NewDeinterleaver(cfg.Channels, cfg.MaxFrames),
	}

	ctx, err := malgo.InitContext(platformBackends(), malgo.ContextConfig{}, func(message string) {
		if cfg.Debug {
			log.Debug("miniaudio", logger.String("message", message))
		}
	})
	if err != nil {
		return nil, errors.New(err).
			Component("audiosource").
			Category(errors.CategoryAudioSource).
			Context("operation", "init_context").
			Build()
	}
	c.ctx = ctx

	if err := c.initDevice(); err != nil {
		c.freeContext()
		return nil, err
	}
	return c, nil
}

func (c *Capture) initDevice() error {
	infos, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return errors.New(err).
			Component("audiosource").
			Category(errors.CategoryAudioSource).
			Context("operation", "list_devices").
			Build()
	}

	devices := make([]DeviceInfo, len(infos))
	for i := range infos {
		devices[i] = describe(i, &infos[i])
	}
	source, err := selectDevice(devices, c.cfg.Device)
	if err != nil {
		return err
	}
	c.source = source

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(c.cfg.Channels)
	deviceConfig.Capture.DeviceID = infos[source.Index].ID.Pointer()
	deviceConfig.SampleRate = uint32(c.cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(c.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: c.onData,
		Stop: c.onStop,
	})
	if err != nil {
		return errors.New(err).
			Component("audiosource").
			Category(errors.CategoryAudioSource).
			Context("operation", "init_device").
			Context("device", source.Name).
			Build()
	}
	c.device = device

	c.log.Info("capture device ready",
		logger.String("device", source.Name),
		logger.String("id", source.ID),
		logger.Int("channels", c.cfg.Channels),
		logger.Int("sample_rate", int(device.SampleRate())))
	return nil
}

// onData runs on the audio thread.
func (c *Capture) onData(_, input []byte, frameCount uint32) {
	n := c.deint.Process(input, int(frameCount), c.sink)
	c.frames.Add(uint64(n))
}

// onStop restarts a device that stopped without being asked to.
func (c *Capture) onStop() {
	if c.stopping.Load() {
		return
	}
	go func() {
		time.Sleep(restartDelay)
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.stopping.Load() || c.device == nil {
			return
		}
		c.restarts.Add(1)
		if err := c.device.Start(); err != nil {
			c.log.Error("failed to restart capture device", logger.Error(err))
			return
		}
		c.log.Warn("capture device restarted", logger.Uint64("restarts", c.restarts.Load()))
	}()
}

// Source returns the selected device.
func (c *Capture) Source() DeviceInfo { return c.source }

// Frames returns the number of frames delivered to the sink.
func (c *Capture) Frames() uint64 { return c.frames.Load() }

// Start starts the device.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopping.Store(false)
	if err := c.device.Start(); err != nil {
		return errors.New(err).
			Component("audiosource").
			Category(errors.CategoryAudioSource).
			Context("operation", "start_device").
			Build()
	}
	return nil
}

// Stop stops the device. No callbacks run after Stop returns.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopping.Store(true)
	if c.device == nil || !c.device.IsStarted() {
		return nil
	}
	if err := c.device.Stop(); err != nil {
		return errors.New(err).
			Component("audiosource").
			Category(errors.CategoryAudioSource).
			Context("operation", "stop_device").
			Build()
	}
	return nil
}

// Close stops and releases the device and its context.
func (c *Capture) Close() error {
	err := c.Stop()

	c.mu.Lock()
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	c.mu.Unlock()

	c.freeContext()
	return err
}

func (c *Capture) freeContext() {
	if c.ctx == nil {
		return
	}
	if err := c.ctx.Uninit(); err != nil {
		c.log.Warn("failed to uninit audio context", logger.Error(err))
	}
	c.ctx.Free()
	c.ctx = nil
}
