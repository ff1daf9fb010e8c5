package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"gatherly/internal/engine"
)

func registerAuth(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          "/register",
		Summary:       "Register a user",
		Tags:          []string{"auth"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusUnprocessableEntity, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body RegisterRequest
	}) (*output[UserResponse], error) {
		var extra []string
		owner, err := h.emailOwner(ctx, input.Body.Email)
		if err != nil {
			return nil, h.fail(ctx, "register", err, "")
		}
		if owner != 0 {
			extra = append(extra, registerMessages["email.unique"])
		}
		if err := h.check(input.Body, registerMessages, extra...); err != nil {
			return nil, h.fail(ctx, "register", err, "")
		}
		u, err := h.engine.Register(ctx, engine.RegisterOptions{
			Name:           input.Body.Name,
			Email:          input.Body.Email,
			Password:       input.Body.Password,
			Gender:         input.Body.Gender,
			BirthDate:      input.Body.BirthDate,
			Address:        input.Body.Address,
			ProfilePicture: input.Body.ProfilePicture,
			AgreeTerms:     input.Body.AgreeTerms,
		})
		if err != nil {
			return nil, h.fail(ctx, "register", err, "")
		}
		return reply("User registered successfully.", userResponse(u)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/login",
		Summary:     "Log in and receive a bearer token",
		Tags:        []string{"auth"},
		Errors:      []int{http.StatusUnauthorized, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest
	}) (*output[LoginResponse], error) {
		if err := h.check(input.Body, loginMessages); err != nil {
			return nil, h.fail(ctx, "login", err, "")
		}
		res, err := h.engine.Login(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			return nil, h.fail(ctx, "login", err, "")
		}
		return reply("User logged in successfully.", LoginResponse{Token: res.Token, UserResponse: userResponse(res.User)}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "logout",
		Method:      http.MethodPost,
		Path:        "/users/logout",
		Summary:     "Revoke the current token",
		Tags:        []string{"auth"},
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*output[[]any], error) {
		p, authErr := currentPrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := h.engine.Logout(ctx, p.TokenID); err != nil {
			return nil, h.fail(ctx, "logout", err, "")
		}
		return reply("User logged out from this device successfully.", noData()), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "logout-all",
		Method:      http.MethodPost,
		Path:        "/users/logout/all",
		Summary:     "Revoke every token of the current user",
		Tags:        []string{"auth"},
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*output[[]any], error) {
		p, authErr := currentPrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := h.engine.LogoutAllDevices(ctx, p.User.ID); err != nil {
			return nil, h.fail(ctx, "logout-all", err, "")
		}
		return reply("User logged out from all devices successfully.", noData()), nil
	})
}

func registerAccount(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "Current user",
		Tags:        []string{"users"},
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*output[UserResponse], error) {
		p, authErr := currentPrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return reply("User data retrieved successfully.", userResponse(p.User)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "update-user",
		Method:        http.MethodPut,
		Path:          "/users",
		Summary:       "Update the current user",
		Tags:          []string{"users"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusUnauthorized, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body UpdateUserRequest `required:"false"`
	}) (*output[UserResponse], error) {
		p, authErr := currentPrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusUnprocessableEntity, "No fields to update.")
		}
		var extra []string
		if input.Body.Email != nil {
			owner, err := h.emailOwner(ctx, *input.Body.Email)
			if err != nil {
				return nil, h.fail(ctx, "update-user", err, "")
			}
			if owner != 0 && owner != p.User.ID {
				extra = append(extra, updateUserMessages["email.unique"])
			}
		}
		if err := h.check(input.Body, updateUserMessages, extra...); err != nil {
			return nil, h.fail(ctx, "update-user", err, "")
		}
		u, err := h.engine.UpdateUser(ctx, p.User, engine.UserUpdateOptions{
			Name:           input.Body.Name,
			Email:          input.Body.Email,
			Password:       input.Body.Password,
			ProfilePicture: input.Body.ProfilePicture,
			Gender:         input.Body.Gender,
			BirthDate:      input.Body.BirthDate,
			Address:        input.Body.Address,
		})
		if err != nil {
			return nil, h.fail(ctx, "update-user", err, "User not found")
		}
		return reply("User information updated successfully.", userResponse(u)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "search-users",
		Method:      http.MethodGet,
		Path:        "/users/search",
		Summary:     "Search users by name or email",
		Tags:        []string{"users"},
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Query string `query:"query"`
	}) (*output[[]UserResponse], error) {
		if _, authErr := currentPrincipal(ctx); authErr != nil {
			return nil, authErr
		}
		users, err := h.engine.SearchUsers(ctx, input.Query)
		if err != nil {
			return nil, h.fail(ctx, "search-users", err, "")
		}
		if len(users) == 0 {
			return nil, newAPIError(http.StatusNotFound, "No users found")
		}
		return reply("Users data retrieved successfully", mapUsers(users)), nil
	})
}
