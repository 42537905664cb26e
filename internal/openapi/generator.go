// Package openapi describes the front desk HTTP API as an OpenAPI 3.1
// document built with kin-openapi.
package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/oakdental/frontdesk/internal/model"
	"github.com/oakdental/frontdesk/internal/service"
)

const (
	tagPublic = "public"
	tagAuth   = "auth"
	tagAdmin  = "admin"
)

func ref(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

// Generate returns the OpenAPI document for the API served at baseURL.
func Generate(baseURL, version string) *openapi3.T {
	if version == "" {
		version = "dev"
	}
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "OAK Dental Front Desk API",
			Description: "Appointment, contact and newsletter intake for the OAK Dental Clinic website, plus the admin moderation API.",
			Version:     version,
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
		Tags: openapi3.Tags{
			{Name: tagPublic, Description: "Forms submitted from the public site"},
			{Name: tagAuth, Description: "Admin accounts and password reset"},
			{Name: tagAdmin, Description: "Moderation endpoints, bearer token required"},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}

	addSchemas(doc.Components.Schemas)

	doc.Paths = openapi3.NewPaths()
	addPublicPaths(doc)
	addAuthPaths(doc)
	addAdminPaths(doc)
	return doc
}

func addSchemas(schemas openapi3.Schemas) {
	schemas["ErrorResponse"] = schemaFor(model.ErrorResponse{}, "error")
	schemas["MessageResponse"] = schemaFor(model.MessageResponse{}, "message")
	schemas["Appointment"] = schemaFor(model.Appointment{})
	schemas["Message"] = schemaFor(model.Message{})
	schemas["Subscriber"] = schemaFor(model.Subscriber{})
	schemas["AppointmentInput"] = schemaFor(service.AppointmentInput{}, "name", "email", "phone", "date")
	schemas["MessageInput"] = schemaFor(service.MessageInput{}, "email", "message")
	schemas["RegisterInput"] = schemaFor(service.RegisterInput{}, "name", "email", "password")
	schemas["ResetInput"] = schemaFor(service.ResetInput{}, "email", "newPassword", "confirmPassword", "resetToken")
	schemas["LoginResult"] = schemaFor(service.LoginResult{})
	schemas["Profile"] = schemaFor(service.Profile{})

	schemas["AppointmentCreated"] = object(openapi3.Schemas{
		"message":     stringSchema(),
		"appointment": ref("Appointment"),
	})
	schemas["SubscribeResult"] = object(openapi3.Schemas{
		"message":            stringSchema(),
		"already_subscribed": boolSchema(),
	})
	schemas["DeliveryResult"] = object(openapi3.Schemas{
		"message":  stringSchema(),
		"sms_sent": boolSchema(),
	})
	verified := schemaFor(service.ResetGrant{})
	verified.Value.Properties["message"] = stringSchema()
	schemas["OTPVerified"] = verified
}

func object(props openapi3.Schemas, required ...string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: props,
		Required:   required,
	}}
}

func boolSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}
}

func arrayOf(item *openapi3.SchemaRef) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"array"}, Items: item}}
}

func jsonBody(desc string, schema *openapi3.SchemaRef) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Description: desc,
			Required:    true,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	}
}

func secured(op *openapi3.Operation) *openapi3.Operation {
	op.Security = &openapi3.SecurityRequirements{{"bearerAuth": {}}}
	op.Tags = []string{tagAdmin}
	return op
}

// ─── Public ─────────────────────────────────────────────────────────────────

func addPublicPaths(doc *openapi3.T) {
	doc.Paths.Set("/api/appointments", &openapi3.PathItem{Post: &openapi3.Operation{
		Tags:        []string{tagPublic},
		Summary:     "Request an appointment",
		OperationID: "submitAppointment",
		RequestBody: jsonBody("Appointment request", ref("AppointmentInput")),
		Responses:   newResponses("201", "Appointment stored as pending", ref("AppointmentCreated"), "400"),
	}})

	doc.Paths.Set("/api/messages", &openapi3.PathItem{Post: &openapi3.Operation{
		Tags:        []string{tagPublic},
		Summary:     "Send a contact message",
		Description: "A missing name is stored as \"Anonymous\".",
		OperationID: "submitMessage",
		RequestBody: jsonBody("Contact message", ref("MessageInput")),
		Responses:   newResponses("201", "Message stored", ref("MessageResponse"), "400"),
	}})

	doc.Paths.Set("/api/subscribers", &openapi3.PathItem{Post: &openapi3.Operation{
		Tags:        []string{tagPublic},
		Summary:     "Subscribe to the newsletter",
		Description: "Idempotent: subscribing an email twice succeeds and keeps one row.",
		OperationID: "subscribe",
		RequestBody: jsonBody("Subscriber email", object(openapi3.Schemas{"email": stringSchema()}, "email")),
		Responses:   newResponses("200", "Subscribed", ref("SubscribeResult"), "400"),
	}})
}

// ─── Auth ───────────────────────────────────────────────────────────────────

func addAuthPaths(doc *openapi3.T) {
	doc.Paths.Set("/api/admin/register", &openapi3.PathItem{Post: &openapi3.Operation{
		Tags:        []string{tagAuth},
		Summary:     "Register an admin account",
		OperationID: "register",
		RequestBody: jsonBody("New admin", ref("RegisterInput")),
		Responses:   newResponses("201", "Registered", ref("MessageResponse"), "400", "409"),
	}})

	doc.Paths.Set("/api/admin/login", &openapi3.PathItem{Post: &openapi3.Operation{
		Tags:        []string{tagAuth},
		Summary:     "Log in",
		OperationID: "login",
		RequestBody: jsonBody("Credentials", object(openapi3.Schemas{
			"email":    stringSchema(),
			"password": stringSchema(),
		}, "email", "password")),
		Responses: newResponses("200", "Session token valid for one hour", ref("LoginResult"), "400", "401", "429"),
	}})

	doc.Paths.Set("/api/admin/send-otp", &openapi3.PathItem{Post: &openapi3.Operation{
		Tags:        []string{tagAuth},
		Summary:     "Email a password reset code",
		OperationID: "sendOTP",
		RequestBody: jsonBody("Admin email", object(openapi3.Schemas{"email": stringSchema()}, "email")),
		Responses:   newResponses("200", "Code sent", ref("DeliveryResult"), "400", "404", "429"),
	}})

	doc.Paths.Set("/api/admin/verify-otp", &openapi3.PathItem{Post: &openapi3.Operation{
		Tags:        []string{tagAuth},
		Summary:     "Verify a reset code",
		Description: "Invalidates every outstanding code for the email and returns a single-use reset token.",
		OperationID: "verifyOTP",
		RequestBody: jsonBody("Email and code", object(openapi3.Schemas{
			"email": stringSchema(),
			"otp":   stringSchema(),
		}, "email", "otp")),
		Responses: newResponses("200", "Code accepted", ref("OTPVerified"), "400", "401", "429"),
	}})

	doc.Paths.Set("/api/admin/reset-password", &openapi3.PathItem{Post: &openapi3.Operation{
		Tags:        []string{tagAuth},
		Summary:     "Set a new password",
		OperationID: "resetPassword",
		RequestBody: jsonBody("New password and reset token", ref("ResetInput")),
		Responses:   newResponses("200", "Password changed", ref("MessageResponse"), "400", "401", "404"),
	}})
}

// ─── Admin ──────────────────────────────────────────────────────────────────

func addAdminPaths(doc *openapi3.T) {
	doc.Paths.Set("/api/admin/profile", &openapi3.PathItem{Get: secured(&openapi3.Operation{
		Summary:     "Current admin profile",
		OperationID: "profile",
		Responses:   newResponses("200", "Profile", ref("Profile"), "401", "403", "404"),
	})})

	statusParam := &openapi3.ParameterRef{Value: &openapi3.Parameter{
		Name:        "status",
		In:          "query",
		Description: "Only return appointments with this status",
		Schema: &openapi3.SchemaRef{Value: &openapi3.Schema{
			Type: &openapi3.Types{"string"},
			Enum: []interface{}{model.StatusPending, model.StatusAccepted, model.StatusCancelled},
		}},
	}}
	doc.Paths.Set("/api/admin/appointments", &openapi3.PathItem{Get: secured(&openapi3.Operation{
		Summary:     "List appointments, newest first",
		OperationID: "listAppointments",
		Parameters:  openapi3.Parameters{statusParam},
		Responses:   newResponses("200", "Appointments", arrayOf(ref("Appointment")), "400", "401", "403"),
	})})

	doc.Paths.Set("/api/admin/messages", &openapi3.PathItem{Get: secured(&openapi3.Operation{
		Summary:     "List contact messages, newest first",
		OperationID: "listMessages",
		Responses:   newResponses("200", "Messages", arrayOf(ref("Message")), "401", "403"),
	})})

	doc.Paths.Set("/api/admin/subscribers", &openapi3.PathItem{Get: secured(&openapi3.Operation{
		Summary:     "List newsletter subscribers, newest first",
		OperationID: "listSubscribers",
		Responses:   newResponses("200", "Subscribers", arrayOf(ref("Subscriber")), "401", "403"),
	})})

	doc.Paths.Set("/api/admin/appointment/action", &openapi3.PathItem{Post: secured(&openapi3.Operation{
		Summary:     "Accept or cancel an appointment",
		Description: "Cancelling requires a reason. The submitter is emailed and, best effort, texted.",
		OperationID: "appointmentAction",
		RequestBody: jsonBody("Action", object(openapi3.Schemas{
			"id": idSchema(),
			"action": &openapi3.SchemaRef{Value: &openapi3.Schema{
				Type: &openapi3.Types{"string"},
				Enum: []interface{}{service.ActionAccept, service.ActionCancel},
			}},
			"reason": stringSchema(),
		}, "id", "action")),
		Responses: newResponses("200", "Appointment updated", ref("DeliveryResult"), "400", "401", "403", "404"),
	})})

	doc.Paths.Set("/api/admin/message/reply", &openapi3.PathItem{Post: secured(&openapi3.Operation{
		Summary:     "Email a reply to a contact message",
		Description: "The reply is Markdown. It is emailed and not stored.",
		OperationID: "replyMessage",
		RequestBody: jsonBody("Reply", object(openapi3.Schemas{
			"id":    idSchema(),
			"reply": stringSchema(),
		}, "id", "reply")),
		Responses: newResponses("200", "Reply sent", ref("MessageResponse"), "400", "401", "403", "404"),
	})})

	idBody := jsonBody("Row id", object(openapi3.Schemas{"id": idSchema()}, "id"))
	doc.Paths.Set("/api/admin/appointment/delete", &openapi3.PathItem{Delete: secured(&openapi3.Operation{
		Summary:     "Delete an appointment",
		OperationID: "deleteAppointment",
		RequestBody: idBody,
		Responses:   newResponses("200", "Deleted", ref("MessageResponse"), "400", "401", "403", "404"),
	})})
	doc.Paths.Set("/api/admin/message/delete", &openapi3.PathItem{Delete: secured(&openapi3.Operation{
		Summary:     "Delete a contact message",
		OperationID: "deleteMessage",
		RequestBody: idBody,
		Responses:   newResponses("200", "Deleted", ref("MessageResponse"), "400", "401", "403", "404"),
	})})
}

var errorDescriptions = map[string]string{
	"400": "Missing or malformed fields",
	"401": "Missing credentials or token",
	"403": "Invalid or expired token",
	"404": "Not found",
	"409": "Email already registered",
	"429": "Too many requests",
}

// newResponses builds the success response plus the listed error responses
// and a 500, all sharing the ErrorResponse schema.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef, errorCodes ...string) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	errorRef := ref("ErrorResponse")
	for _, code := range append(errorCodes, "500") {
		desc := errorDescriptions[code]
		if desc == "" {
			desc = "Internal server error"
		}
		responses.Set(code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &desc,
				Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
			},
		})
	}
	return responses
}
