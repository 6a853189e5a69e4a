// Package jwt implements HMAC-SHA256 signed tokens for API authentication,
// with typed access claims, an HTTP middleware, and context helpers for
// retrieving the authenticated user downstream.
//
// Usage:
//
//	svc, _ := jwt.NewFromString(cfg.SigningKey)
//	token, _ := svc.Generate(jwt.AccessClaims{
//	    StandardClaims: jwt.StandardClaims{
//	        Subject:   user.ID,
//	        ExpiresAt: time.Now().Add(7 * 24 * time.Hour).Unix(),
//	    },
//	    Email: user.Email,
//	    Plan:  string(user.Plan),
//	})
//
//	r.Use(jwt.Middleware(svc))
package jwt
