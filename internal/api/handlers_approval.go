package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/caresync/booking-engine/internal/approval"
)

func registerFacilityHandler(svc *approval.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID, _, err := callerFrom(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_caller", err.Error())
			return
		}

		var req RegisterFacilityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		adminIDs, err := parseUUIDs(req.AdminIDs)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_admin_ids", "admin_ids must be valid UUIDs")
			return
		}
		if len(adminIDs) == 0 {
			adminIDs = []uuid.UUID{callerID}
		}

		f, err := svc.RegisterFacility(r.Context(), callerID, approval.RegisterFacilityParams{
			Name:               req.Name,
			Address:            req.Address,
			RegistrationNumber: req.RegistrationNumber,
			Departments:        req.Departments,
			AdminIDs:           adminIDs,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, f)
	}
}

func approveFacilityHandler(svc *approval.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		facilityID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_facility_id", "id must be a valid UUID")
			return
		}

		callerID, callerRole, err := callerFrom(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_caller", err.Error())
			return
		}

		f, err := svc.ApproveFacility(r.Context(), callerID, callerRole, facilityID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, f)
	}
}

func rejectFacilityHandler(svc *approval.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		facilityID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_facility_id", "id must be a valid UUID")
			return
		}

		callerID, callerRole, err := callerFrom(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_caller", err.Error())
			return
		}

		var req RejectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		f, err := svc.RejectFacility(r.Context(), callerID, callerRole, facilityID, req.Reason)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, f)
	}
}

func updateFacilityHandler(svc *approval.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		facilityID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_facility_id", "id must be a valid UUID")
			return
		}

		var req UpdateFacilityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		changes := approval.FacilityProfileChanges{
			Name:               req.Name,
			Address:            req.Address,
			RegistrationNumber: req.RegistrationNumber,
			Departments:        req.Departments,
		}
		if req.AdminIDs != nil {
			ids, err := parseUUIDs(*req.AdminIDs)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_admin_ids", "admin_ids must be valid UUIDs")
				return
			}
			changes.AdminIDs = &ids
		}

		f, err := svc.UpdateFacilityProfile(r.Context(), facilityID, changes)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, f)
	}
}

func registerProviderHandler(svc *approval.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterProviderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		var facilityID *uuid.UUID
		if req.FacilityID != nil {
			id, err := uuid.Parse(*req.FacilityID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_facility_id", "facility_id must be a valid UUID")
				return
			}
			facilityID = &id
		}

		p, err := svc.RegisterProvider(r.Context(), approval.RegisterProviderParams{
			Name:          req.Name,
			Email:         req.Email,
			Specialty:     req.Specialty,
			LicenseNumber: req.LicenseNumber,
			FacilityID:    facilityID,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, p)
	}
}

func addProviderByFacilityHandler(svc *approval.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		facilityID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_facility_id", "id must be a valid UUID")
			return
		}

		callerID, _, err := callerFrom(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_caller", err.Error())
			return
		}

		var req AddProviderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		p, err := svc.AddProviderByFacility(r.Context(), callerID, facilityID, approval.AddProviderParams{
			Name:          req.Name,
			Email:         req.Email,
			Specialty:     req.Specialty,
			LicenseNumber: req.LicenseNumber,
			Department:    req.Department,
			Title:         req.Title,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, p)
	}
}

func approveProviderByFacilityHandler(svc *approval.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		facilityID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_facility_id", "id must be a valid UUID")
			return
		}
		providerID, err := uuid.Parse(chi.URLParam(r, "providerID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "providerID must be a valid UUID")
			return
		}

		callerID, _, err := callerFrom(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_caller", err.Error())
			return
		}

		p, err := svc.ApproveProviderByFacility(r.Context(), callerID, facilityID, providerID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, p)
	}
}

func approveProviderByAdminHandler(svc *approval.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "id must be a valid UUID")
			return
		}

		callerID, callerRole, err := callerFrom(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_caller", err.Error())
			return
		}

		p, err := svc.ApproveProviderByAdmin(r.Context(), callerID, callerRole, providerID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, p)
	}
}

func rejectProviderHandler(svc *approval.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "id must be a valid UUID")
			return
		}

		callerID, callerRole, err := callerFrom(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_caller", err.Error())
			return
		}

		var req RejectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		p, err := svc.RejectProvider(r.Context(), callerID, callerRole, providerID, req.Reason)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, p)
	}
}

func providerAuditHandler(svc *approval.Service) http.HandlerFunc {
	return auditHandler(svc, approval.TargetProvider)
}

func facilityAuditHandler(svc *approval.Service) http.HandlerFunc {
	return auditHandler(svc, approval.TargetFacility)
}

func auditHandler(svc *approval.Service, targetType approval.TargetType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		targetID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_target_id", "id must be a valid UUID")
			return
		}

		entries, err := svc.AuditTrail(r.Context(), targetType, targetID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, entries)
	}
}

func parseUUIDs(in []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(in))
	for _, s := range in {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
