package detector

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"visors/internal/models"
	"visors/processing/frame"
)

// YOLOSeg runs a YOLO11 segmentation ONNX export through OpenCV's DNN module.
type YOLOSeg struct {
	mu       sync.Mutex
	net      gocv.Net
	cfg      Config
	outNames []string
	closed   bool
}

// NewYOLOSeg loads the model at cfg.ModelPath.
func NewYOLOSeg(cfg Config) (*YOLOSeg, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file %s: %w", cfg.ModelPath, err)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model from %s", cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	layers := net.GetLayerNames()
	var outNames []string
	for _, id := range net.GetUnconnectedOutLayers() {
		if id > 0 && id <= len(layers) {
			outNames = append(outNames, layers[id-1])
		}
	}
	if len(outNames) != 2 {
		net.Close()
		return nil, fmt.Errorf("%s has %d outputs, a segmentation model needs 2", cfg.ModelPath, len(outNames))
	}

	if len(cfg.Classes) == 0 {
		cfg.Classes = COCOClasses
	}

	return &YOLOSeg{net: net, cfg: cfg, outNames: outNames}, nil
}

// Detect runs one forward pass over f.
func (d *YOLOSeg) Detect(ctx context.Context, f *frame.Frame) (*models.DetectionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, fmt.Errorf("detector closed")
	}

	img, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Pix)
	if err != nil {
		return nil, fmt.Errorf("wrap frame: %w", err)
	}
	defer img.Close()

	size := image.Pt(d.cfg.InputSize, d.cfg.InputSize)
	blob := gocv.BlobFromImage(img, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")

	outs := d.net.ForwardLayers(d.outNames)
	defer func() {
		for i := range outs {
			outs[i].Close()
		}
	}()
	if len(outs) != 2 {
		return nil, fmt.Errorf("forward returned %d outputs", len(outs))
	}

	det, protos := outs[0], outs[1]
	if len(det.Size()) == 4 {
		det, protos = protos, det
	}

	hs, err := newHeadShape(det.Size(), protos.Size())
	if err != nil {
		return nil, err
	}

	detData, err := det.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read detections: %w", err)
	}
	protoData, err := protos.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read prototypes: %w", err)
	}

	frameSize := image.Pt(f.Width, f.Height)
	cands := decodeCandidates(detData, hs, d.cfg.InputSize, frameSize, d.cfg.Confidence)

	result := &models.DetectionResult{FrameSize: frameSize}
	if len(cands) == 0 {
		return result, nil
	}

	boxes := classOffsetBoxes(cands)
	scores := make([]float32, len(cands))
	for i, c := range cands {
		scores[i] = c.score
	}

	mh, mw := protos.Size()[2], protos.Size()[3]
	for _, idx := range gocv.NMSBoxes(boxes, scores, d.cfg.Confidence, d.cfg.NMS) {
		c := cands[idx]
		result.Detections = append(result.Detections, models.Detection{
			ClassID:    c.class,
			Label:      className(d.cfg.Classes, c.class),
			Confidence: c.score,
			Box:        c.box,
			Mask:       buildMask(c.coeffs, protoData, mh, mw, c.box, frameSize, d.cfg.MaskThreshold),
		})
	}

	return result, nil
}

// Close releases the network. Calling it more than once is safe.
func (d *YOLOSeg) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.net.Close()
}
