package profile

import (
	"fmt"

	"github.com/eliteGoblin/focusd/version_guard/internal/domain"
)

const capcutPackages = "https://lf16-capcut.faceulv.com/obj/capcutpc-packages-us/packages/"

// Catalog returns the curated installers known to be worth pinning.
func Catalog() []domain.ArchiveEntry {
	return []domain.ArchiveEntry{
		{
			Persona:     "Offline Purist",
			Version:     "1.5.0",
			Description: "Zero cloud dependencies. Unrestricted 4K export.",
			Features:    []string{"Clean UI", "Offline Only", "No Nags"},
			DownloadURL: capcutPackages + "CapCut_1_5_0_230_capcutpc_0.exe",
			RiskLevel:   "Low",
		},
		{
			Persona:     "Audio Engineer",
			Version:     "2.5.4",
			Description: "Multi-track audio & stable mixer. The golden era.",
			Features:    []string{"Multi-Track", "Audio Mixer", "Keyframes"},
			DownloadURL: capcutPackages + "CapCut_2_5_4_810_capcutpc_0_creatortool.exe",
			RiskLevel:   "Low",
		},
		{
			Persona:     "Classic Pro",
			Version:     "2.9.0",
			Description: "Most free features before the generic paywalls.",
			Features:    []string{"Max Free Features", "Stable", "Legacy UI"},
			DownloadURL: capcutPackages + "CapCut_2_9_0_966_capcutpc_0_creatortool.exe",
			RiskLevel:   "Medium",
		},
		{
			Persona:     "Modern Stable",
			Version:     "3.2.0",
			Description: "Good balance of modern features vs paywalls.",
			Features:    []string{"Modern UI", "Smooth", "Balanced"},
			DownloadURL: capcutPackages + "CapCut_3_2_0_1106_capcutpc_0_creatortool.exe",
			RiskLevel:   "Medium",
		},
		{
			Persona:     "Creator",
			Version:     "3.9.0",
			Description: "Last version with free auto-captions (High Risk).",
			Features:    []string{"Auto-Captions", "AI Features", "Effects"},
			DownloadURL: capcutPackages + "CapCut_3_9_0_1459_capcutpc_0_creatortool.exe",
			RiskLevel:   "High",
		},
		{
			Persona:     "Power User",
			Version:     "4.0.0",
			Description: "Track height adjustment & markers. Stricter paywall.",
			Features:    []string{"Track Zoom", "Markers", "Adv Features"},
			DownloadURL: capcutPackages + "CapCut_4_0_0_1539_capcutpc_0_creatortool.exe",
			RiskLevel:   "Medium",
		},
	}
}

// FindArchive looks an entry up by version or persona (case-sensitive version,
// exact persona).
func FindArchive(key string) (domain.ArchiveEntry, error) {
	for _, e := range Catalog() {
		if e.Version == key || e.Persona == key {
			return e, nil
		}
	}
	return domain.ArchiveEntry{}, fmt.Errorf("no archive entry for %q", key)
}
