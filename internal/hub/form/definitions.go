package form

import "time"

// Form names double as draft keys.
const (
	SignupForm      = "signup"
	SigninForm      = "signin"
	AppointmentForm = "appointment"
	HireForm        = "hire"
)

const (
	msgInvalidEmail = "Invalid email address"
	msgInvalidPhone = "Invalid phone number"
)

func emailField() Field {
	return Field{
		Name:  "email",
		Label: "Email",
		Rules: []Rule{
			Required("Email is required"),
			Pattern(EmailPattern, msgInvalidEmail),
			MaxLength(254, msgInvalidEmail),
		},
	}
}

// Signup is the three-step account wizard.
func Signup() *Definition {
	return NewDefinition(SignupForm,
		Step{
			Title: "Personal details",
			Fields: []Field{
				{Name: "firstName", Label: "First name", Rules: []Rule{
					Required("First name is required"),
					MaxLength(80, "First name is too long"),
				}},
				{Name: "lastName", Label: "Last name", Rules: []Rule{
					Required("Last name is required"),
					MaxLength(80, "Last name is too long"),
				}},
				{Name: "dateOfBirth", Label: "Date of birth", Rules: []Rule{
					Required("Date of birth is required"),
					Tag("datetime="+DateLayout, "Enter a valid date"),
				}},
			},
		},
		Step{
			Title: "Contact",
			Fields: []Field{
				emailField(),
				{Name: "phoneNumber", Label: "Phone number", Rules: []Rule{
					Required("Phone number is required"),
					Tag("hubphone", msgInvalidPhone),
				}},
				{Name: "address", Label: "Address", Rules: []Rule{
					Required("Address is required"),
					MaxLength(200, "Address is too long"),
				}},
			},
		},
		Step{
			Title: "Security",
			Fields: []Field{
				{Name: "password", Label: "Password", Secret: true, Rules: []Rule{
					Required("Password is required"),
					MinLength(6, "Password must be at least 6 characters"),
				}},
				{Name: "confirmPassword", Label: "Confirm password", Secret: true, Rules: []Rule{
					Required("Please confirm your password"),
					EqualsField("password", "Passwords do not match"),
				}},
			},
		},
	)
}

// Signin is the single-step sign-in form.
func Signin() *Definition {
	return NewDefinition(SigninForm, Step{
		Fields: []Field{
			emailField(),
			{Name: "password", Label: "Password", Secret: true, Rules: []Rule{
				Required("Password is required"),
			}},
		},
	})
}

// AppointmentOptions supplies the choice lists for the appointment form.
type AppointmentOptions struct {
	Purposes  []string
	TimeSlots []string
	Now       func() time.Time
}

// Appointment is the single-step booking form.
func Appointment(opts AppointmentOptions) *Definition {
	return NewDefinition(AppointmentForm, Step{
		Fields: []Field{
			{Name: "name", Label: "Full name", Rules: []Rule{
				Required("Name is required"),
				MaxLength(120, "Name is too long"),
			}},
			emailField(),
			{Name: "phone", Label: "Phone number", Rules: []Rule{
				Required("Phone number is required"),
				Tag("hubphone", msgInvalidPhone),
			}},
			{Name: "purpose", Label: "Purpose", Rules: []Rule{
				Required("Please select a purpose"),
				OneOf(opts.Purposes, "Please select a purpose"),
			}},
			{Name: "date", Label: "Preferred date", Rules: []Rule{
				Required("Date is required"),
				NotBeforeToday(opts.Now, "Choose today or a later date"),
			}},
			{Name: "time", Label: "Preferred time", Rules: []Rule{
				Required("Time is required"),
				OneOf(opts.TimeSlots, "Time is required"),
			}},
			{Name: "message", Label: "Additional information", Rules: []Rule{
				MaxLength(2000, "Message is too long"),
			}},
		},
	})
}

// HireOptions supplies the choice lists for the hire-talent form.
type HireOptions struct {
	JobTypes []string
	Skills   []string
}

// Hire is the single-step talent request form.
func Hire(opts HireOptions) *Definition {
	return NewDefinition(HireForm, Step{
		Fields: []Field{
			{Name: "companyName", Label: "Company name", Rules: []Rule{
				Required("Company name is required"),
				MaxLength(120, "Company name is too long"),
			}},
			{Name: "contactName", Label: "Contact person", Rules: []Rule{
				Required("Contact name is required"),
				MaxLength(120, "Contact name is too long"),
			}},
			emailField(),
			{Name: "phone", Label: "Phone number", Rules: []Rule{
				Required("Phone number is required"),
				Tag("hubphone", msgInvalidPhone),
			}},
			{Name: "jobTitle", Label: "Job title", Rules: []Rule{
				Required("Job title is required"),
				MaxLength(120, "Job title is too long"),
			}},
			{Name: "jobType", Label: "Job type", Rules: []Rule{
				Required("Job type is required"),
				OneOf(opts.JobTypes, "Job type is required"),
			}},
			{Name: "skills", Label: "Required skills", Rules: []Rule{
				Required("Please select at least one skill"),
				SubsetOf(opts.Skills, "Please select skills from the list"),
			}},
			{Name: "description", Label: "Job description", Rules: []Rule{
				Required("Job description is required"),
				MaxLength(4000, "Job description is too long"),
			}},
		},
	})
}
