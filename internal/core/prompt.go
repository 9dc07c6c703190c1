package core

import (
	"fmt"
	"strings"

	"github.com/asisten-gizi/server/internal/rag"
)

const answerPreamble = "Anda adalah asisten nutrisi yang sangat membantu dan informatif."

// ComposeAnswerPrompt grounds the question in docs, or asks the model to use
// general knowledge when nothing was retrieved.
func ComposeAnswerPrompt(query string, kind Kind, docs []rag.Document) string {
	var b strings.Builder
	b.WriteString(answerPreamble)
	b.WriteString("\n\nJenis bahan dalam pertanyaan ini adalah: ")
	b.WriteString(kind.Label())
	b.WriteString(".\n\n")

	if len(docs) > 0 {
		parts := make([]string, len(docs))
		for i, d := range docs {
			parts[i] = "Sumber: " + d.Source + "\nKonten: " + d.Content
		}
		b.WriteString("Jawab pertanyaan berdasarkan konteks berikut:\n\n")
		b.WriteString(strings.Join(parts, "\n\n---\n\n"))
	} else {
		b.WriteString("Jawab pertanyaan berikut berdasarkan pengetahuan umum Anda.")
	}

	b.WriteString("\n\nPertanyaan: ")
	b.WriteString(query)
	b.WriteString("\n\nJawaban:")
	return b.String()
}

const weekPromptTemplate = `Buat program sesuai dengan tujuan %[1]s untuk %[2]d minggu. Fokus pada detail jadwal harian untuk Minggu Ke-%[3]d (Hari %[4]d-%[5]d).

Harap sediakan konten untuk bagian-bagian berikut:
Breakfast (07:00-08:00)
Lunch (12:00-13:00)
Dinner (18:00-19:00)
Snack (15:30)
Exercise
Tips Harian secara singkat.

Untuk setiap item makanan atau exercise, berikan: Menu/Jenis, Porsi, Kalori, dan Catatan singkat untuk rekomendasi apasaja yang harus dikonsumsi dan dilakukan.
Untuk Tips Harian dan Saran Olahraga, berikan poin-poin. Pastikan format output nya sama tiap minggunya.

Informasi pengguna untuk dipertimbangkan:
- Tujuan: %[1]s
- Usia: %[6]d tahun
- Berat badan saat ini: %[7]s kg
- Tinggi badan: %[8]s cm
- BMI saat ini: %[9]s, Kategori: %[10]s (Saran: %[11]s)
- Pola makan umum: %[12]s
- Alergi makanan: %[13]s
- Makanan tidak disukai: %[14]s
- Frekuensi olahraga: %[15]s
- Kualitas tidur: %[16]s

Hindari makanan yang menyebabkan alergi (%[13]s) dan yang tidak disukai (%[14]s).
Pastikan saran realistis dan sesuai dengan konteks Indonesia.
Jangan sertakan pengulangan instruksi atau informasi BMI secara eksplisit dalam output jadwal harian Anda.`

// ComposeWeekPrompt asks for one week of the schedule. The section names,
// times and per-item fields are fixed so every week comes back in the same
// shape.
func ComposeWeekPrompt(p UserProfile, m HealthMetrics, totalWeeks int, w WeekWindow) string {
	return fmt.Sprintf(weekPromptTemplate,
		p.Goal, totalWeeks, w.Week, w.StartDay, w.EndDay,
		p.Age, p.Weight, p.Height,
		m.FormattedBMI(), m.Category.Label(), m.Suggestion,
		p.EatingPattern, p.Allergies, p.Dislikes, p.ExerciseFrequency, p.SleepQuality,
	)
}

// ProgramSystemMessage frames every week request.
const ProgramSystemMessage = "Anda adalah ahli gizi dan nutrisi berpengalaman di Indonesia. Buat rencana diet mingguan sesuai konteks lokal."
