package auth

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestTokenRoundTrip(t *testing.T) {
	service := NewService([]byte("test-signing-key"))

	Convey("Given an issued executor token", t, func() {
		token, err := service.IssueToken(
			"executor.agent.v1", "executor",
			[]string{RoleAgentExecutor},
			[]string{PermExecutorRun},
			time.Hour,
		)
		So(err, ShouldBeNil)

		Convey("When the token is verified", func() {
			claims, err := service.VerifyToken(token)

			Convey("It should carry the agent identity", func() {
				So(err, ShouldBeNil)
				So(claims.AgentID, ShouldEqual, "executor.agent.v1")
				So(claims.Roles, ShouldResemble, []string{RoleAgentExecutor})
				So(claims.Scopes, ShouldResemble, []string{PermExecutorRun})
			})
		})

		Convey("When the token is tampered with", func() {
			_, err := service.VerifyToken(token + "x")

			Convey("Verification should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestExpiredTokenRejected(t *testing.T) {
	service := NewService([]byte("test-signing-key"))

	Convey("Given a token that has already expired", t, func() {
		token, err := service.IssueToken(
			"planner.agent.v1", "planner",
			[]string{RoleAgentPlanner}, nil, -time.Minute,
		)
		So(err, ShouldBeNil)

		Convey("Verification should fail", func() {
			_, err := service.VerifyToken(token)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestFromHeader(t *testing.T) {
	Convey("Given authorization header values", t, func() {
		Convey("A Bearer header yields the raw token", func() {
			token, err := FromHeader("Bearer abc123")
			So(err, ShouldBeNil)
			So(token, ShouldEqual, "abc123")
		})

		Convey("A bare token passes through", func() {
			token, err := FromHeader("abc123")
			So(err, ShouldBeNil)
			So(token, ShouldEqual, "abc123")
		})

		Convey("An empty header is an error", func() {
			_, err := FromHeader("")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestCheckToolAccess(t *testing.T) {
	Convey("Given the role permission table", t, func() {
		Convey("An executor can reach executor-scoped tools", func() {
			So(CheckToolAccess(
				[]string{RoleAgentExecutor},
				[]string{PermExecutorRun},
			), ShouldBeTrue)
		})

		Convey("One intersecting scope is enough", func() {
			So(CheckToolAccess(
				[]string{RoleAgentExecutor},
				[]string{PermPlansCreate, PermAnalyzerRun},
			), ShouldBeTrue)
		})

		Convey("A plain user cannot invoke tools", func() {
			So(CheckToolAccess(
				[]string{RoleUser},
				[]string{PermToolsInvoke},
			), ShouldBeFalse)
		})

		Convey("Unknown roles grant nothing", func() {
			So(CheckToolAccess(
				[]string{"intruder"},
				[]string{PermToolsDiscover},
			), ShouldBeFalse)
		})

		Convey("Admin holds every permission", func() {
			So(HasPermission([]string{RoleAdmin}, PermTasksDelete), ShouldBeTrue)
		})
	})
}

func TestRateLimiter(t *testing.T) {
	Convey("Given a limiter allowing 2 per minute", t, func() {
		limiter := NewRateLimiter(2, time.Minute)

		Convey("The first two calls pass, the third does not", func() {
			So(limiter.Allow(), ShouldBeTrue)
			So(limiter.Allow(), ShouldBeTrue)
			So(limiter.Allow(), ShouldBeFalse)
			So(limiter.WaitTime(), ShouldBeGreaterThan, 0)
		})

		Convey("Reset refills the bucket", func() {
			limiter.Allow()
			limiter.Allow()
			limiter.Reset()
			So(limiter.Allow(), ShouldBeTrue)
		})
	})
}
