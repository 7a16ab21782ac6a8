package screen

// NoticeKind classifies a user-visible message.
type NoticeKind int

const (
	// Advisory covers permission and validation problems the user can fix.
	Advisory NoticeKind = iota + 1
	Info
	Error
	Success
)

func (k NoticeKind) String() string {
	switch k {
	case Advisory:
		return "advisory"
	case Info:
		return "info"
	case Error:
		return "error"
	case Success:
		return "success"
	default:
		return "unknown"
	}
}

// Notice is a transient message shown in response to an action outcome.
type Notice struct {
	Kind    NoticeKind
	Title   string
	Message string
}

// Notifier displays notices.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

const (
	TitlePermissionsRequired = "Permissions Required"
	TitlePermissionDenied    = "Permission Denied"
	TitleCancelled           = "Cancelled"
	TitleError               = "Error"
	TitleSuccess             = "Success"

	MsgPermissionsRequired = "Camera and gallery permissions are needed to use this app."
	MsgGalleryDenied       = "Gallery access permission is required."
	MsgCameraDenied        = "Camera access permission is required."
	MsgGalleryCancelled    = "Image selection was cancelled."
	MsgCameraCancelled     = "Photo capture was cancelled."
	MsgGalleryFailed       = "An error occurred while trying to access the gallery."
	MsgCameraFailed        = "An error occurred while trying to access the camera."
	MsgSelectTwoImages     = "Please select two images before comparing."
	MsgComparisonFailed    = "Comparison failed."
	MsgComparisonError     = "An error occurred while comparing the images."
	MsgBothImagesShown     = "Both images are now displayed. Tap on an image to replace it."
)
