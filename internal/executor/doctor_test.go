package executor

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeDoctor struct {
	doctorFn func(ctx context.Context) (*Capabilities, error)
}

func (f *fakeDoctor) RunDoctor(ctx context.Context) (*Capabilities, error) {
	return f.doctorFn(ctx)
}

func TestCachedDoctor_TTL(t *testing.T) {
	calls := 0
	fake := &fakeDoctor{
		doctorFn: func(ctx context.Context) (*Capabilities, error) {
			calls++
			return &Capabilities{
				FFmpeg:   ToolInfo{Available: true},
				ProbedAt: time.Now(),
				Summary:  SummaryInfo{Available: 5, Total: 9},
			}, nil
		},
	}

	doc := NewCachedDoctor(fake, nil)
	doc.ttl = 100 * time.Millisecond
	ctx := context.Background()

	caps1, err := doc.Get(ctx)
	if err != nil {
		t.Fatalf("first Get: %v", err)
	}
	if !caps1.FFmpeg.Available {
		t.Error("expected ffmpeg available")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}

	caps2, err := doc.Get(ctx)
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if caps2.ProbedAt != caps1.ProbedAt {
		t.Error("expected cached result on second call")
	}
	if calls != 1 {
		t.Errorf("expected 1 call (cached), got %d", calls)
	}

	time.Sleep(150 * time.Millisecond)

	_, err = doc.Get(ctx)
	if err != nil {
		t.Fatalf("third Get (after TTL): %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls after TTL expiry, got %d", calls)
	}
}

func TestCachedDoctor_Invalidate(t *testing.T) {
	calls := 0
	fake := &fakeDoctor{
		doctorFn: func(ctx context.Context) (*Capabilities, error) {
			calls++
			return &Capabilities{ProbedAt: time.Now()}, nil
		},
	}

	doc := NewCachedDoctor(fake, nil)
	ctx := context.Background()

	doc.Get(ctx)
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}

	doc.Invalidate()
	if doc.Peek() != nil {
		t.Error("Peek() after Invalidate should be nil")
	}
	doc.Get(ctx)
	if calls != 2 {
		t.Errorf("expected 2 calls after Invalidate, got %d", calls)
	}
}

func TestCachedDoctor_StaleOnError(t *testing.T) {
	fail := false
	fake := &fakeDoctor{
		doctorFn: func(ctx context.Context) (*Capabilities, error) {
			if fail {
				return nil, errors.New("probe broke")
			}
			return &Capabilities{ProbedAt: time.Now()}, nil
		},
	}

	doc := NewCachedDoctor(fake, nil)
	first, err := doc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	fail = true
	again, err := doc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh with stale cache should not fail: %v", err)
	}
	if again != first {
		t.Error("expected stale capabilities")
	}

	doc.Invalidate()
	if _, err := doc.Refresh(context.Background()); err == nil {
		t.Error("expected error without cache")
	}
}

func TestParseProbe(t *testing.T) {
	data := []byte(`{
		"streams": [
			{"codec_type": "audio", "codec_name": "aac"},
			{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080, "avg_frame_rate": "30000/1001"},
			{"codec_type": "video", "codec_name": "mjpeg", "width": 320, "height": 240}
		],
		"format": {"duration": "12.500000", "size": "1048576", "bit_rate": "671088"}
	}`)

	res, err := ParseProbe(data)
	if err != nil {
		t.Fatalf("ParseProbe: %v", err)
	}
	if res.Codec != "h264" || res.Width != 1920 || res.Height != 1080 {
		t.Errorf("video stream = %+v", res)
	}
	if res.AudioCodec != "aac" {
		t.Errorf("AudioCodec = %q", res.AudioCodec)
	}
	if res.Duration != 12.5 || res.Size != 1048576 || res.Bitrate != 671088 {
		t.Errorf("format = %+v", res)
	}
	if res.FrameRate < 29.96 || res.FrameRate > 29.98 {
		t.Errorf("FrameRate = %v", res.FrameRate)
	}

	if _, err := ParseProbe([]byte("not json")); err == nil {
		t.Error("expected parse error")
	}
}
