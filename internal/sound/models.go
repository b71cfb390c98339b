package sound

type Sound struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	CoverURL    string `json:"cover_url"`
	DurationSec int32  `json:"duration_sec"`
	Uses        int64  `json:"uses"`
}
