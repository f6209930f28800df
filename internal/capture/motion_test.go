package capture

import (
	"testing"

	"gocv.io/x/gocv"
)

func solidFrame(v float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, v, v, 0), 480, 640, gocv.MatTypeCV8UC3)
}

func TestNewMotionDetector(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		want      float64
	}{
		{"explicit", 5.0, 5.0},
		{"low", 0.5, 0.5},
		{"zero uses default", 0, DefaultMotionThreshold},
		{"negative uses default", -2, DefaultMotionThreshold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := NewMotionDetector(tt.threshold)
			defer md.Close()

			if got := md.Threshold(); got != tt.want {
				t.Errorf("Threshold() = %f, want %f", got, tt.want)
			}
			if md.hasPrev {
				t.Error("new detector should have no baseline")
			}
		})
	}
}

func TestMotionDetector_Detect(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	black := solidFrame(0)
	defer black.Close()
	black2 := solidFrame(0)
	defer black2.Close()
	white := solidFrame(255)
	defer white.Close()

	md := NewMotionDetector(1.0)
	defer md.Close()

	if moved, pct := md.Detect(&black); moved || pct != 0 {
		t.Errorf("first frame = %v, %f; want baseline only", moved, pct)
	}
	if moved, pct := md.Detect(&black2); moved {
		t.Errorf("identical frames reported motion (%f%%)", pct)
	}
	moved, pct := md.Detect(&white)
	if !moved {
		t.Errorf("black to white should be motion, changed %f%%", pct)
	}
	if pct < 50 {
		t.Errorf("changed = %f%%, want > 50%%", pct)
	}
}

func TestMotionDetector_Reset(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	black := solidFrame(0)
	defer black.Close()
	white := solidFrame(255)
	defer white.Close()

	md := NewMotionDetector(1.0)
	defer md.Close()

	md.Detect(&black)
	if !md.hasPrev {
		t.Fatal("detector should have a baseline after the first frame")
	}

	md.Reset()
	if moved, _ := md.Detect(&white); moved {
		t.Error("first frame after Reset should only set the baseline")
	}
}

func TestMotionDetector_EmptyFrame(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	empty := gocv.NewMat()
	defer empty.Close()

	if moved, pct := md.Detect(&empty); moved || pct != 0 {
		t.Errorf("empty frame = %v, %f", moved, pct)
	}
	if moved, _ := md.Detect(nil); moved {
		t.Error("nil frame should not be motion")
	}
}

func TestMotionDetector_SetThreshold(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	md.SetThreshold(5.0)
	if md.Threshold() != 5.0 {
		t.Errorf("Threshold() = %f, want 5.0", md.Threshold())
	}
	md.SetThreshold(-1.0)
	if md.Threshold() != 5.0 {
		t.Errorf("negative threshold should be ignored, got %f", md.Threshold())
	}
}

func TestMotionDetector_CloseTwice(t *testing.T) {
	md := NewMotionDetector(1.0)
	md.Close()
	md.Close()
}
