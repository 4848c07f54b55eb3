package records

import (
	"slices"

	"spmi.org/internal/auth"
)

// Collection keys in the blob store.
const (
	KeyUsers             = "spmi_users"
	KeyAuditEntries      = "spmi_audit"
	KeyCorrectiveActions = "spmi_ptk"
	KeyStandards         = "spmi_standards"
	KeyPlans             = "spmi_audit_plans"
	KeyDocuments         = "spmi_documents"
	KeyCurrentCycle      = "spmi_current_cycle"
	KeyOpenCycles        = "spmi_active_cycles_list"
)

// SeedAdminID identifies the built-in administrator, which can never be deleted.
const SeedAdminID = "admin-001"

// DefaultCycle is selected when no current cycle has been stored.
const DefaultCycle Cycle = "2026"

// DefaultAdmin returns the built-in administrator account.
func DefaultAdmin() auth.User {
	return auth.User{ID: SeedAdminID, Username: "admin", Password: "admin123", Role: auth.RoleAdmin}
}

var prodis = []string{
	"BK", "PGSD", "PIAUD", "MPI", "Matematika", "Informatika",
	"Sistem Informasi", "Teknik Kimia", "Teknik Mesin", "Teknik Industri",
	"Manajemen", "Ekonomi Pembangunan", "PAI", "PGMI", "HKI", "KPI", "S2 PAI",
}

// Prodis returns the study program catalogue.
func Prodis() []string { return slices.Clone(prodis) }

// CycleOptions returns the selectable cycles.
func CycleOptions() []Cycle {
	return []Cycle{"2024", "2025", "2026", "2027", "2028", "2029", "2030"}
}

func ind(id, std, name, baseline, target, subject string) Indicator {
	return Indicator{ID: id, StandardID: std, Name: name, Baseline: baseline, Target: target, TargetYear: "2029", Subject: subject}
}

// SeedStandards returns the built-in standards taxonomy.
func SeedStandards() []Standard {
	return []Standard{
		{ID: "S1", Code: "STA/SPMI-01", Title: "Standar Kemahasiswaan dan Alumni", Indicators: []Indicator{
			ind("I1-1", "S1", "Persentase mahasiswa penerima beasiswa", "75%", "95%", "Wakil Rektor III"),
			ind("I1-2", "S1", "Tingkat kepuasan mahasiswa terhadap layanan BK", "4.0", "4.7", "Unit BK"),
			ind("I1-3", "S1", "Rata-rata Masa Tunggu Kerja Lulusan", "7 Bulan", "< 3 Bulan", "CDC"),
		}},
		{ID: "S2", Code: "STA/SPMI-02", Title: "Standar Kerjasama", Indicators: []Indicator{
			ind("I2-1", "S2", "Jumlah kerjasama aktif (MoU/MoA/PKS)", "10", "30", "Lembaga Kerjasama"),
			ind("I2-2", "S2", "Persentase prodi terlibat kerjasama akademik", "30%", "100%", "Ketua Prodi"),
		}},
		{ID: "S3", Code: "STA/SPMI-03", Title: "Standar Tata Pamong", Indicators: []Indicator{
			ind("I3-1", "S3", "Indeks Kepuasan Pemangku Kepentingan", "4.0", "4.8", "Rektor"),
			ind("I3-2", "S3", "Persentase Realisasi Program Kerja Strategis", "80%", "100%", "Rektor"),
		}},
		{ID: "S4", Code: "STA/SPMI-04", Title: "Standar Visi Misi", Indicators: []Indicator{
			ind("I4-1", "S4", "Tingkat keselarasan visi, misi, tujuan & strategi", "80%", "100%", "Dekan/Kaprodi"),
		}},
		{ID: "S5", Code: "STA/SPMI-05", Title: "Standar Kompetensi Lulusan", Indicators: []Indicator{
			ind("I5-1", "S5", "Tingkat Keterserapan Kerja (Employment Rate)", "70%", ">= 90%", "Unit Tracer Study"),
			ind("I5-2", "S5", "Sertifikasi Profesi/Industri Lulusan", "20%", ">= 80%", "Prodi"),
		}},
		{ID: "S6", Code: "STA/SPMI-06", Title: "Standar Proses Pembelajaran", Indicators: []Indicator{
			ind("I6-1", "S6", "RPS Berbasis CPL terintegrasi LMS", "70%", "100%", "Dosen/Kaprodi"),
			ind("I6-2", "S6", "Pembelajaran Adaptif (Blended Learning)", "40%", "100%", "Dosen"),
		}},
		{ID: "S7", Code: "STA/SPMI-07", Title: "Standar Penilaian Pembelajaran", Indicators: []Indicator{
			ind("I7-1", "S7", "Asesmen Autentik (Portofolio/Proyek)", "40%", "100%", "Dosen"),
		}},
		{ID: "S8", Code: "STA/SPMI-08", Title: "Standar Pengelolaan Pendidikan", Indicators: []Indicator{
			ind("I8-1", "S8", "Implementasi Renop Tahunan Berbasis IKU", "80%", "100%", "Rektor"),
		}},
	}
}

// ensureAdmin appends the default administrator when users holds no ADMIN.
func ensureAdmin(users []auth.User) ([]auth.User, bool) {
	for _, u := range users {
		if u.Role == auth.RoleAdmin {
			return users, false
		}
	}
	return append(users, DefaultAdmin()), true
}
