package util

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// MediaInfo 存储音频信息
type MediaInfo struct {
	Duration float64 `json:"duration"` // 秒
	Codec    string  `json:"codec"`
	Format   string  `json:"format"`
	Size     int64   `json:"size"`
}

// ProbeFunc 便于在测试中替换 ffprobe
type ProbeFunc func(path string) (string, error)

var Probe ProbeFunc = func(path string) (string, error) { return ffmpeg.Probe(path) }

// GetMediaInfo 使用 ffprobe 读取录音时长和编码
func GetMediaInfo(path string) (*MediaInfo, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("recording file missing: %w", err)
	}

	jsonOutput, err := Probe(path)
	if err != nil {
		return nil, fmt.Errorf("probe recording: %w", err)
	}
	return ParseProbeOutput(jsonOutput, fileInfo.Size())
}

// ParseProbeOutput 解析 ffprobe 的 JSON 输出
func ParseProbeOutput(jsonOutput string, fallbackSize int64) (*MediaInfo, error) {
	var result struct {
		Streams []struct {
			CodecType string `json:"codec_type"`
			CodecName string `json:"codec_name"`
			Duration  string `json:"duration"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
			Size     string `json:"size"`
			Format   string `json:"format_name"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(jsonOutput), &result); err != nil {
		return nil, fmt.Errorf("parse probe output: %w", err)
	}

	info := &MediaInfo{Format: "unknown", Size: fallbackSize}
	var streamDuration string
	hasAudio := false
	for _, stream := range result.Streams {
		if stream.CodecType == "audio" {
			hasAudio = true
			info.Codec = stream.CodecName
			streamDuration = stream.Duration
			break
		}
	}
	if !hasAudio {
		return nil, fmt.Errorf("%w: no audio stream", ErrUnsupportedMedia)
	}

	// webm 容器常常只在 stream 上有时长
	if d, err := strconv.ParseFloat(result.Format.Duration, 64); err == nil {
		info.Duration = d
	} else if d, err := strconv.ParseFloat(streamDuration, 64); err == nil {
		info.Duration = d
	}

	if size, err := strconv.ParseInt(result.Format.Size, 10, 64); err == nil {
		info.Size = size
	}
	if parts := strings.Split(result.Format.Format, ","); parts[0] != "" {
		info.Format = parts[0]
	}
	return info, nil
}
