package integration

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/seedpost/seedpost/test-integration/pipeline/helpers"
)

const (
	hashA = "c12fe1c06bba254a9dc9f519b335aa7c1367a88a"
	hashB = "5a8ce26e8a19a877d8ccc927fcc18e34e1f5ff67"
	hashC = "0e9b8c7a6d5f4e3d2c1b0a9f8e7d6c5b4a392817"
)

var _ = Describe("Pipeline", Label("pipeline"), func() {
	var (
		tempDir      string
		listing      *helpers.ListingServer
		bot          *helpers.FakeBotAPI
		engine       *helpers.FakeEngine
		configFile   string
		serverHelper *helpers.ServerTestHelper
	)

	BeforeEach(func() {
		tempDir = createTempDir("pipeline-test-")

		listing = helpers.NewListingServer(
			helpers.ListingItem{Title: "Show A - 01", Href: helpers.MagnetFor(hashA, "Show A - 01"), DeclaredSize: "3.0 MB"},
			helpers.ListingItem{Title: "Show B - 01", Href: "/download/b01.torrent", InfoHash: hashB, DeclaredSize: "5.0 GB"},
		)
		bot = helpers.NewFakeBotAPI()
		engine = helpers.NewFakeEngine(map[string]helpers.Artifact{
			hashA: {Name: "Show A - 01.mkv", Size: 3 << 20},
			hashB: {Name: "Show B - 01.mkv", Size: 5 << 30},
			hashC: {Name: "Show C - 02.mkv", Size: 1 << 20},
		})

		configFile = helpers.WriteConfigYAML(tempDir, helpers.ConfigOptions{
			ListingURL:  listing.URL(),
			APIEndpoint: bot.Endpoint(),
		})

		var err error
		serverHelper, err = helpers.NewServerTestHelper(ctx, configFile, engine)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = serverHelper.StopServer()
		listing.Close()
		bot.Close()
		cleanupTempDir(tempDir)
	})

	Context("First cycle", func() {
		It("should publish the small item and skip the oversized one", func() {
			Expect(serverHelper.StartServer()).To(Succeed())
			serverHelper.WaitForServerReady(10 * time.Second)

			Eventually(bot.Documents, 10*time.Second, 100*time.Millisecond).Should(HaveLen(1))
			doc := bot.Documents()[0]
			Expect(doc.ChatID).To(Equal(helpers.TargetID))
			Expect(doc.Caption).To(Equal("📁 Show A - 01\n💾 Size: 3.0 MB"))
			Expect(doc.FileName).To(Equal("Show A - 01.mkv"))

			Eventually(func() []string { return bot.Messages(helpers.OperatorID) }, 5*time.Second).
				Should(ContainElement("✅ Uploaded: Show A - 01"))
			Expect(bot.Messages(helpers.OperatorID)[0]).To(ContainSubstring("started"))

			Eventually(func() int64 {
				status, err := serverHelper.GetStatus()
				if err != nil {
					return -1
				}
				return status.State.ItemsDiscovered
			}, 5*time.Second).Should(Equal(int64(2)))

			status, err := serverHelper.GetStatus()
			Expect(err).NotTo(HaveOccurred())
			Expect(status.State.ItemsPublished).To(Equal(int64(1)))
			Expect(status.State.Errors).To(BeZero())
			Expect(status.State.Enabled).To(BeTrue())

			ledger, err := serverHelper.GetLedger()
			Expect(err).NotTo(HaveOccurred())
			Expect(ledger.Total).To(Equal(1))
			Expect(ledger.Records[0].Key).To(Equal("btih:" + hashA))
			Expect(ledger.Records[0].DisplayName).To(Equal("Show A - 01"))

			By("downloading the metainfo file for the linked item")
			Eventually(engine.Started, 5*time.Second).Should(ConsistOf(hashA, hashB))
			Expect(listing.Downloads()).To(Equal(1))
		})
	})

	Context("Restart", func() {
		It("should not publish an item twice across restarts", func() {
			Expect(serverHelper.StartServer()).To(Succeed())
			serverHelper.WaitForServerReady(10 * time.Second)
			Eventually(bot.Documents, 10*time.Second, 100*time.Millisecond).Should(HaveLen(1))
			Eventually(engine.Started, 5*time.Second).Should(HaveLen(2))
			Expect(serverHelper.StopServer()).To(Succeed())

			restarted, err := helpers.NewServerTestHelper(ctx, configFile, engine)
			Expect(err).NotTo(HaveOccurred())
			Expect(restarted.StartServer()).To(Succeed())
			defer func() {
				_ = restarted.StopServer()
			}()
			restarted.WaitForServerReady(10 * time.Second)

			Consistently(bot.Documents, time.Second, 100*time.Millisecond).Should(HaveLen(1))

			By("skipping the known item before starting a transfer")
			Expect(engine.Started()).To(HaveLen(3))
			Expect(engine.Started()[2]).To(Equal(hashB))

			ledger, err := restarted.GetLedger()
			Expect(err).NotTo(HaveOccurred())
			Expect(ledger.Total).To(Equal(1))
		})
	})

	Context("Title filter", func() {
		It("should not transfer excluded titles", func() {
			filtered := helpers.WriteConfigYAML(tempDir, helpers.ConfigOptions{
				ListingURL:  listing.URL(),
				APIEndpoint: bot.Endpoint(),
				Exclude:     []string{"show b*"},
			})
			filteredHelper, err := helpers.NewServerTestHelper(ctx, filtered, engine)
			Expect(err).NotTo(HaveOccurred())
			Expect(filteredHelper.StartServer()).To(Succeed())
			defer func() {
				_ = filteredHelper.StopServer()
			}()
			filteredHelper.WaitForServerReady(10 * time.Second)

			Eventually(bot.Documents, 10*time.Second, 100*time.Millisecond).Should(HaveLen(1))
			Consistently(engine.Started, 500*time.Millisecond).Should(Equal([]string{hashA}))
			Expect(listing.Downloads()).To(BeZero())

			status, err := filteredHelper.GetStatus()
			Expect(err).NotTo(HaveOccurred())
			Expect(status.State.ItemsDiscovered).To(Equal(int64(1)))
			Expect(status.Config).To(ContainElement(HaveField("Key", "Exclude")))
		})
	})
})
