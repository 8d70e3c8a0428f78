package container

import (
	app "pcb-inspector/internal/application"
	"pcb-inspector/internal/domain/port"
)

// Deps — адаптеры, собранные в main под выбранные бэкенды.
type Deps struct {
	Users    port.UserRepository
	Images   port.ImageProcessor
	Decoder  port.BarcodeDecoder
	Detector port.DefectDetector
	Records  port.RecordStore
	History  port.ScanHistory // может быть nil
	Locator  port.ImageLocator
}

type Container struct {
	Images            port.ImageProcessor
	UserService       *app.UserService
	InspectionService *app.InspectionService
	TriggerService    *app.TriggerService
	LookupService     *app.LookupService
	ReviewService     *app.ReviewService
	MonitorService    *app.MonitorService
}

func New(deps Deps, cfg app.InspectionConfig) *Container {
	userService := app.NewUserService(deps.Users)
	inspectionService := app.NewInspectionService(deps.Images, deps.Decoder, deps.Detector, deps.Records, deps.History, cfg)
	triggerService := app.NewTriggerService(deps.Locator, inspectionService)

	return &Container{
		Images:            deps.Images,
		UserService:       userService,
		InspectionService: inspectionService,
		TriggerService:    triggerService,
		LookupService:     app.NewLookupService(deps.Records, triggerService),
		ReviewService:     app.NewReviewService(inspectionService, deps.Records, app.DefaultReviewTTL),
		MonitorService:    app.NewMonitorService(deps.Records, deps.History),
	}
}
