package integration

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/seedpost/seedpost/test-integration/pipeline/helpers"
)

var _ = Describe("Operator commands", Label("commands"), func() {
	var (
		tempDir      string
		listing      *helpers.ListingServer
		bot          *helpers.FakeBotAPI
		engine       *helpers.FakeEngine
		serverHelper *helpers.ServerTestHelper
	)

	operatorMessages := func() []string {
		return bot.Messages(helpers.OperatorID)
	}

	BeforeEach(func() {
		tempDir = createTempDir("commands-test-")

		listing = helpers.NewListingServer()
		bot = helpers.NewFakeBotAPI()
		engine = helpers.NewFakeEngine(map[string]helpers.Artifact{
			hashC: {Name: "Show C - 02.mkv", Size: 1 << 20},
		})

		configFile := helpers.WriteConfigYAML(tempDir, helpers.ConfigOptions{
			ListingURL:  listing.URL(),
			APIEndpoint: bot.Endpoint(),
		})

		var err error
		serverHelper, err = helpers.NewServerTestHelper(ctx, configFile, engine)
		Expect(err).NotTo(HaveOccurred())
		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(10 * time.Second)
	})

	AfterEach(func() {
		_ = serverHelper.StopServer()
		listing.Close()
		bot.Close()
		cleanupTempDir(tempDir)
	})

	It("should pause and resume uploads", func() {
		bot.QueueCommand(helpers.OperatorID, "/pause")
		Eventually(operatorMessages, 5*time.Second).Should(ContainElement("⏸️ Automatic uploads paused"))

		status, err := serverHelper.GetStatus()
		Expect(err).NotTo(HaveOccurred())
		Expect(status.State.Enabled).To(BeFalse())

		By("refusing a forced check while paused")
		bot.QueueCommand(helpers.OperatorID, "/check")
		Eventually(operatorMessages, 5*time.Second).Should(ContainElement(ContainSubstring("use /resume first")))

		bot.QueueCommand(helpers.OperatorID, "/resume")
		Eventually(operatorMessages, 5*time.Second).Should(ContainElement("▶️ Automatic uploads resumed"))

		status, err = serverHelper.GetStatus()
		Expect(err).NotTo(HaveOccurred())
		Expect(status.State.Enabled).To(BeTrue())
	})

	It("should pick up new items on /check without waiting for the poll interval", func() {
		listing.SetItems(helpers.ListingItem{
			Title:        "Show C - 02",
			Href:         helpers.MagnetFor(hashC, "Show C - 02"),
			DeclaredSize: "1.0 MB",
		})

		bot.QueueCommand(helpers.OperatorID, "/check")
		Eventually(operatorMessages, 5*time.Second).Should(ContainElement("🔍 Checking for new torrents"))

		Eventually(bot.Documents, 10*time.Second, 100*time.Millisecond).Should(HaveLen(1))
		Expect(bot.Documents()[0].Caption).To(Equal("📁 Show C - 02\n💾 Size: 1.0 MB"))
		Eventually(operatorMessages, 5*time.Second).Should(ContainElement("✅ Uploaded: Show C - 02"))
	})

	It("should report counters on /stats", func() {
		bot.QueueCommand(helpers.OperatorID, "/stats")
		Eventually(operatorMessages, 5*time.Second).Should(ContainElement(
			And(ContainSubstring("📊 Statistics"), ContainSubstring("Files Uploaded: 0"))))
	})

	It("should ignore commands from anyone but the operator", func() {
		stranger := int64(777)
		bot.QueueCommand(stranger, "/pause")
		bot.QueueCommand(helpers.OperatorID, "/status")

		Eventually(operatorMessages, 5*time.Second).Should(ContainElement(ContainSubstring("Status Report")))
		Expect(bot.Messages(stranger)).To(BeEmpty())

		status, err := serverHelper.GetStatus()
		Expect(err).NotTo(HaveOccurred())
		Expect(status.State.Enabled).To(BeTrue())
	})
})
