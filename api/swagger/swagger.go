package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA UKS API",
        "description": "School health unit service: campaign consent and result lifecycle",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Campaigns", "description": "Health campaign lifecycle and eligibility"},
        {"name": "Consents", "description": "Guardian consent ledger"},
        {"name": "Results", "description": "Procedure results and follow-up tracking"},
        {"name": "Students", "description": "Student roster"},
        {"name": "Medicine", "description": "Guardian medicine requests"}
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/campaigns": {
            "get": {
                "tags": ["Campaigns"],
                "summary": "List health campaigns",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Campaigns"],
                "summary": "Create campaign in draft status",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateCampaignRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed"}
                }
            }
        },
        "/campaigns/{id}": {
            "get": {
                "tags": ["Campaigns"],
                "summary": "Get campaign",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Campaigns"],
                "summary": "Update a draft campaign",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateCampaignRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Campaign left draft"}
                }
            }
        },
        "/campaigns/{id}/transition": {
            "post": {
                "tags": ["Campaigns"],
                "summary": "Transition campaign status",
                "description": "Activation resolves eligibility and fans out pending consent requests idempotently.",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TransitionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid transition"},
                    "422": {"description": "Eligibility set is empty"}
                }
            }
        },
        "/campaigns/{id}/eligibility": {
            "get": {
                "tags": ["Campaigns"],
                "summary": "Preview the students a campaign targets",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/campaigns/{id}/summary": {
            "get": {
                "tags": ["Campaigns"],
                "summary": "Consent summary for a campaign",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/campaigns/{id}/consents/export": {
            "get": {
                "tags": ["Campaigns"],
                "summary": "Export the consent roster",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Rendered file"}
                }
            },
            "post": {
                "tags": ["Campaigns"],
                "summary": "Persist a consent roster export and return a signed download link",
                "produces": ["application/json"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Campaigns"],
                "summary": "Download a previously generated roster export",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Rendered file"},
                    "401": {"description": "Invalid or expired token"}
                }
            }
        },
        "/campaigns/{id}/my-consents": {
            "get": {
                "tags": ["Consents"],
                "summary": "Consent state for every student linked to the caller",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/campaigns/{id}/students/{studentId}/consent": {
            "get": {
                "tags": ["Consents"],
                "summary": "Consent state for one student in one campaign",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Consents"],
                "summary": "Submit or change a consent decision",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordConsentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "No approved guardian link"},
                    "409": {"description": "Campaign closed or deadline passed"}
                }
            }
        },
        "/campaigns/{id}/students/{studentId}/result": {
            "get": {
                "tags": ["Results"],
                "summary": "Get the result for one student in one campaign",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Results"],
                "summary": "Record the outcome of performing the campaign procedure",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordResultRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Detail type mismatch"},
                    "409": {"description": "Campaign not active, consent missing, or duplicate result"}
                }
            }
        },
        "/campaigns/{id}/results": {
            "get": {
                "tags": ["Results"],
                "summary": "List results recorded for a campaign",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/campaigns/{id}/follow-ups": {
            "get": {
                "tags": ["Results"],
                "summary": "Unresolved follow-ups for a campaign",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/results/{id}/follow-up": {
            "put": {
                "tags": ["Results"],
                "summary": "Progress the follow-up of a result",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateFollowUpRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Follow-up closed or not required"}
                }
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "class", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Students"],
                "summary": "Register a student",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateStudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Students"],
                "summary": "Update student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateStudentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/consents": {
            "get": {
                "tags": ["Consents"],
                "summary": "A student's consent records across campaigns",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/results": {
            "get": {
                "tags": ["Results"],
                "summary": "A student's results across campaigns",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/medicine-requests": {
            "get": {
                "tags": ["Medicine"],
                "summary": "List medicine requests",
                "parameters": [
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Medicine"],
                "summary": "File a medicine administration request",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateMedicineRequestRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "No approved guardian link"}
                }
            }
        },
        "/medicine-requests/{id}/review": {
            "post": {
                "tags": ["Medicine"],
                "summary": "Review a medicine request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReviewMedicineRequestRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid review transition"}
                }
            }
        }
    },
    "definitions": {
        "Campaign": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "campaign_type": {"type": "string", "enum": ["VACCINATION", "HEALTH_CHECK"]},
                "status": {"type": "string", "enum": ["DRAFT", "ACTIVE", "COMPLETED", "CANCELLED"]},
                "target_classes": {"type": "array", "items": {"type": "string"}},
                "target_students": {"type": "array", "items": {"type": "string"}},
                "requires_consent": {"type": "boolean"},
                "consent_deadline": {"type": "string"},
                "start_date": {"type": "string"},
                "end_date": {"type": "string"},
                "created_by": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "CreateCampaignRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "campaign_type": {"type": "string", "enum": ["VACCINATION", "HEALTH_CHECK"]},
                "target_classes": {"type": "array", "items": {"type": "string"}},
                "target_students": {"type": "array", "items": {"type": "string"}},
                "requires_consent": {"type": "boolean"},
                "consent_deadline": {"type": "string"},
                "start_date": {"type": "string"},
                "end_date": {"type": "string"}
            },
            "required": ["title", "campaign_type", "start_date", "end_date"]
        },
        "UpdateCampaignRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "target_classes": {"type": "array", "items": {"type": "string"}},
                "target_students": {"type": "array", "items": {"type": "string"}},
                "requires_consent": {"type": "boolean"},
                "consent_deadline": {"type": "string"},
                "start_date": {"type": "string"},
                "end_date": {"type": "string"}
            },
            "required": ["title", "start_date", "end_date"]
        },
        "TransitionRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["ACTIVE", "COMPLETED", "CANCELLED"]}
            },
            "required": ["status"]
        },
        "RecordConsentRequest": {
            "type": "object",
            "properties": {
                "decision": {"type": "string", "enum": ["APPROVED", "DECLINED"]},
                "notes": {"type": "string"}
            },
            "required": ["decision"]
        },
        "RecordResultRequest": {
            "type": "object",
            "properties": {
                "detail": {"$ref": "#/definitions/ResultDetail"},
                "notes": {"type": "string"}
            },
            "required": ["detail"]
        },
        "ResultDetail": {
            "type": "object",
            "properties": {
                "vaccination": {"$ref": "#/definitions/VaccinationDetail"},
                "screening": {"$ref": "#/definitions/ScreeningDetail"}
            }
        },
        "VaccinationDetail": {
            "type": "object",
            "properties": {
                "brand": {"type": "string"},
                "batch_number": {"type": "string"},
                "dose_number": {"type": "integer"},
                "expiry_date": {"type": "string"},
                "administered_by": {"type": "string"},
                "administered_at": {"type": "string"},
                "side_effects": {"type": "array", "items": {"type": "string"}},
                "follow_up_required": {"type": "boolean"}
            }
        },
        "ScreeningDetail": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["HEALTHY", "NEEDS_ATTENTION", "CRITICAL"]},
                "findings": {"type": "string"},
                "recommendations": {"type": "string"},
                "requires_consultation": {"type": "boolean"},
                "follow_up_required": {"type": "boolean"}
            }
        },
        "UpdateFollowUpRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["NORMAL", "MILD_REACTION", "MODERATE_REACTION", "SEVERE_REACTION", "COMPLETED"]},
                "notes": {"type": "string"},
                "additional_actions": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["status"]
        },
        "CreateStudentRequest": {
            "type": "object",
            "properties": {
                "nis": {"type": "string"},
                "full_name": {"type": "string"},
                "gender": {"type": "string", "enum": ["M", "F"]},
                "birth_date": {"type": "string"},
                "class_name": {"type": "string"}
            },
            "required": ["nis", "full_name", "gender", "birth_date", "class_name"]
        },
        "UpdateStudentRequest": {
            "type": "object",
            "properties": {
                "nis": {"type": "string"},
                "full_name": {"type": "string"},
                "gender": {"type": "string", "enum": ["M", "F"]},
                "birth_date": {"type": "string"},
                "class_name": {"type": "string"},
                "active": {"type": "boolean"}
            },
            "required": ["nis", "full_name", "gender", "birth_date", "class_name"]
        },
        "CreateMedicineRequestRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "medicine_name": {"type": "string"},
                "dosage": {"type": "string"},
                "frequency": {"type": "string"},
                "instructions": {"type": "string"},
                "start_date": {"type": "string"},
                "end_date": {"type": "string"}
            },
            "required": ["student_id", "medicine_name", "dosage", "frequency", "start_date", "end_date"]
        },
        "ReviewMedicineRequestRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["APPROVED", "REJECTED", "COMPLETED"]},
                "notes": {"type": "string"}
            },
            "required": ["status"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
