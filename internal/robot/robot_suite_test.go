package robot_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestRobot(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Robot Suite")
}
