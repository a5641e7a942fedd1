package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 录音上传相关常量
const (
	MimeAudio       = "audio/"
	MimeVideoWebm   = "video/webm"
	MimeOctetStream = "application/octet-stream"
	MimeOgg         = "application/ogg"
	MimeMP4         = "video/mp4"
)

var (
	AllowedRecordingMimes      = []string{MimeAudio, MimeVideoWebm, MimeOgg, MimeMP4}
	AllowedRecordingExtensions = []string{".webm", ".ogg", ".mp3", ".wav", ".m4a"}
)

const (
	RoleLearner    = "learner"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)
