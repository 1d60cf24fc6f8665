package firstview

import "strconv"

type LoginRequest struct {
	EmailOrPhone string `json:"email_or_phone"`
	Password     string `json:"password"`
	RememberMe   bool   `json:"remember_me"`
	DeviceName   string `json:"device_name"`
	DeviceUID    string `json:"device_uid"`
}

type LoginResponse struct {
	LoginToken   string        `json:"login_token,omitempty"`
	RefreshToken string        `json:"refresh_token,omitempty"`
	Message      string        `json:"message,omitempty"`
	Response     *ResponseCode `json:"response,omitempty"`
}

type TokenRequest struct {
	Email      string `json:"email"`
	LoginToken string `json:"login_token"`
}

type TokenResponse struct {
	AuthToken string        `json:"auth_token,omitempty"`
	Expiry    int64         `json:"expiry"`
	Message   string        `json:"message,omitempty"`
	Response  *ResponseCode `json:"response,omitempty"`
}

type EtaResponse struct {
	Result   []Result      `json:"result,omitempty"`
	Message  string        `json:"message,omitempty"`
	Response *ResponseCode `json:"response,omitempty"`
}

type NotificationResponse struct {
	Result   []Notification `json:"result,omitempty"`
	Message  string         `json:"message,omitempty"`
	Response *ResponseCode  `json:"response,omitempty"`
}

type Notification struct {
	ID        int64  `json:"id"`
	Title     string `json:"title,omitempty"`
	Contents  string `json:"contents,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type ResponseCode struct {
	Code int `json:"code"`
}

// Result is one reported leg of a rider's journey.
type Result struct {
	Period                      string           `json:"period,omitempty"`
	PickupOrDropoff             string           `json:"pickup_or_dropoff,omitempty"`
	DispatchType                string           `json:"dispatch_type,omitempty"`
	TimeZone                    string           `json:"time_zone,omitempty"`
	ScheduledTime               string           `json:"scheduled_time,omitempty"`
	TemplateScheduledTime       string           `json:"template_scheduled_time,omitempty"`
	AverageTime                 string           `json:"average_time,omitempty"`
	RouteID                     string           `json:"route_id,omitempty"`
	Route                       string           `json:"route,omitempty"`
	JourneyID                   string           `json:"journey_id,omitempty"`
	Stop                        *Stop            `json:"stop,omitempty"`
	School                      string           `json:"school,omitempty"`
	SchoolClosed                bool             `json:"school_closed"`
	ContractorID                int64            `json:"contractor_id"`
	CreatedAt                   string           `json:"created_at,omitempty"`
	EarlyLateMinutes            float64          `json:"early_late_minutes"`
	EstimatedTime               string           `json:"estimated_time,omitempty"`
	EstimatedTimeFromNowMinutes string           `json:"estimated_time_from_now_minutes,omitempty"`
	Status                      string           `json:"status,omitempty"`
	Type                        string           `json:"type,omitempty"`
	StopID                      string           `json:"stop_id,omitempty"`
	VehicleLocation             *VehicleLocation `json:"vehicle_location,omitempty"`
	Student                     *Student         `json:"student,omitempty"`
	ServiceStartTime            string           `json:"service_start_time,omitempty"`
	RunComplete                 string           `json:"run_complete,omitempty"`
	RunCode                     string           `json:"run_code,omitempty"`
}

type Student struct {
	ID                    int64  `json:"id"`
	StudentNumber         string `json:"student_number,omitempty"`
	FirstName             string `json:"first_name,omitempty"`
	LastName              string `json:"last_name,omitempty"`
	LinkedActivityStudent bool   `json:"linked_activity_student,omitempty"`
	ActivityStudent       bool   `json:"activity_student,omitempty"`
	School                string `json:"school,omitempty"`
}

type VehicleLocation struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Bearing   float64 `json:"bearing"`
	Text      string  `json:"text,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

type Stop struct {
	Name      string  `json:"name,omitempty"`
	ID        string  `json:"id,omitempty"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	TimeZone  string  `json:"time_zone,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
}

// StudentName is "first last"; absent parts are empty strings.
func (r Result) StudentName() string {
	var first, last string
	if r.Student != nil {
		first, last = r.Student.FirstName, r.Student.LastName
	}
	return first + " " + last
}

// StudentID is the numeric student id when present. Records without one fall back to the
// display name so they still group together; this is intentional.
func (r Result) StudentID() string {
	if r.Student != nil && r.Student.ID != 0 {
		return strconv.FormatInt(r.Student.ID, 10)
	}
	return r.StudentName()
}
