package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrPermissionDenied  ErrCode = "PERMISSION_DENIED"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidWindow  ErrCode = "INVALID_EXAM_WINDOW"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Exam-specific ─────────────────────────────────────────────────
	ErrExamNotAvailable        ErrCode = "EXAM_NOT_AVAILABLE"
	ErrRegistrationRequired    ErrCode = "REGISTRATION_REQUIRED"
	ErrRegistrationNotRequired ErrCode = "REGISTRATION_NOT_REQUIRED"
	ErrUnknownQuestion         ErrCode = "UNKNOWN_QUESTION"

	// ─── Session-specific ──────────────────────────────────────────────
	ErrSessionNotStarted   ErrCode = "SESSION_NOT_STARTED"
	ErrDeadlineExceeded    ErrCode = "DEADLINE_EXCEEDED"
	ErrSessionCompleted    ErrCode = "SESSION_ALREADY_COMPLETED"
	ErrSessionNotCompleted ErrCode = "SESSION_NOT_COMPLETED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal    ErrCode = "INTERNAL_ERROR"
	ErrUnavailable ErrCode = "SERVICE_UNAVAILABLE"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrPermissionDenied:
		return "Izin ditolak."
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk siswa."
	case ErrAdminAccessOnly:
		return "Sumber daya ini terbatas untuk administrator."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."
	case ErrInvalidWindow:
		return "Jadwal ujian tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."

	// ─── Exam-specific ─────────────────────────────────────────────────
	case ErrExamNotAvailable:
		return "Ujian ini saat ini tidak tersedia."
	case ErrRegistrationRequired:
		return "Anda harus mendaftar untuk mengikuti ujian ini."
	case ErrRegistrationNotRequired:
		return "Ujian ini tidak memerlukan pendaftaran."
	case ErrUnknownQuestion:
		return "Jawaban merujuk pada soal yang bukan bagian dari ujian ini."

	// ─── Session-specific ──────────────────────────────────────────────
	case ErrSessionNotStarted:
		return "Anda belum memulai ujian ini."
	case ErrDeadlineExceeded:
		return "Waktu pengerjaan ujian telah habis."
	case ErrSessionCompleted:
		return "Ujian ini sudah diselesaikan."
	case ErrSessionNotCompleted:
		return "Ujian ini belum diselesaikan."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	case ErrUnavailable:
		return "Layanan sedang tidak tersedia. Silakan coba lagi."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
