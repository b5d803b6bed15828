package features

// Feature ids of the brand strategy app.
const (
	BrandAnalysis  = "brandAnalysis"
	VisualIdentity = "visualIdentity"
	VoiceContent   = "voiceContent"
	Landing        = "landing"
	Dashboard      = "dashboard"
	ExportPDF      = "exportPdf"
	ExportExcel    = "exportExcel"
	ExportCalendar = "exportCalendar"
	ExportPNG      = "exportPng"
	VoiceCloning   = "voiceCloning"
	BrandKit       = "brandKit"
)

// DefaultDemoGenerations is the starting quota of a fresh demo session.
const DefaultDemoGenerations = 3

func intp(v int) *int { return &v }

// Default returns the compiled-in catalog.
func Default() *Catalog {
	c, err := NewCatalog(
		Descriptor{ID: Landing, Tier: Public},
		Descriptor{ID: BrandAnalysis, Tier: Demo, Demo: &DemoLimits{
			MaxGenerations:    DefaultDemoGenerations,
			WatermarkRequired: true,
		}},
		Descriptor{ID: VisualIdentity, Tier: Demo, Demo: &DemoLimits{
			MaxGenerations:    DefaultDemoGenerations,
			MaxResolution:     intp(1024),
			WatermarkRequired: true,
		}},
		Descriptor{ID: VoiceContent, Tier: Demo, Demo: &DemoLimits{
			MaxGenerations:     DefaultDemoGenerations,
			MaxDurationSeconds: intp(30),
			WatermarkRequired:  true,
		}},
		Descriptor{ID: Dashboard, Tier: Authenticated},
		Descriptor{ID: ExportPDF, Tier: Authenticated},
		Descriptor{ID: ExportExcel, Tier: Authenticated},
		Descriptor{ID: ExportCalendar, Tier: Authenticated},
		Descriptor{ID: ExportPNG, Tier: Authenticated},
		Descriptor{ID: VoiceCloning, Tier: Premium},
		Descriptor{ID: BrandKit, Tier: Premium},
	)
	if err != nil {
		panic("features: invalid default catalog: " + err.Error())
	}
	return c
}
